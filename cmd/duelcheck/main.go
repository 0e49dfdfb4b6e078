// duelcheck is a liveness probe for a running duel server: it hits
// /healthz and, when credentials are provided, exercises login to
// confirm the auth path end to end.
package main

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	baseURL := os.Getenv("DUEL_BASE_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	nickname := os.Getenv("DUEL_CHECK_NICKNAME")
	password := os.Getenv("DUEL_CHECK_PASSWORD")

	client := &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}

	status, body, err := get(client, baseURL+"/healthz")
	if err != nil {
		log.Fatalf("/healthz error: %v", err)
	}
	if status != fasthttp.StatusOK {
		log.Fatalf("/healthz status %d: %s", status, body)
	}
	log.Printf("/healthz ok")

	if nickname == "" || password == "" {
		log.Println("DUEL_CHECK_NICKNAME/PASSWORD not set; skipping login check")
		return
	}

	payload, _ := json.Marshal(map[string]string{"nickname": nickname, "password": password})
	status, body, err = post(client, baseURL+"/api/login", payload)
	if err != nil {
		log.Fatalf("/api/login error: %v", err)
	}
	if status != fasthttp.StatusOK {
		log.Fatalf("/api/login status %d: %s", status, body)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Token == "" {
		log.Fatalf("/api/login: no token in response: %s", body)
	}
	log.Printf("/api/login ok")
}

func get(client *fasthttp.Client, url string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.SetRequestURI(url)
	if err := client.DoTimeout(req, resp, 5*time.Second); err != nil {
		return 0, nil, err
	}
	return resp.StatusCode(), append([]byte(nil), resp.Body()...), nil
}

func post(client *fasthttp.Client, url string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetRequestURI(url)
	req.SetBody(body)
	if err := client.DoTimeout(req, resp, 5*time.Second); err != nil {
		return 0, nil, err
	}
	return resp.StatusCode(), append([]byte(nil), resp.Body()...), nil
}
