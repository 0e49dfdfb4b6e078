package authn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// RemoteVerifier delegates token verification to an external identity
// service: POST {token} to the verify endpoint, expect {nickname}.
// Used when tokens are issued outside this process.
type RemoteVerifier struct {
	verifyURL string
	http      *fasthttp.Client
	timeout   time.Duration
}

type RemoteOption func(*RemoteVerifier)

func WithTimeout(d time.Duration) RemoteOption {
	return func(v *RemoteVerifier) { v.timeout = d }
}

func WithMaxConnsPerHost(n int) RemoteOption {
	return func(v *RemoteVerifier) { v.http.MaxConnsPerHost = n }
}

func NewRemoteVerifier(verifyURL string, opts ...RemoteOption) *RemoteVerifier {
	v := &RemoteVerifier{
		verifyURL: strings.TrimRight(verifyURL, "/"),
		http:      &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		timeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Nickname string `json:"nickname"`
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errInvalidToken()
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(v.verifyURL)
	req.Header.SetContentType("application/json")

	payload, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return "", fmt.Errorf("marshal verify request: %w", err)
	}
	req.SetBody(payload)

	timeout := v.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	if err := v.http.DoTimeout(req, resp, timeout); err != nil {
		return "", fmt.Errorf("identity service: %w", err)
	}

	switch code := resp.StatusCode(); {
	case code == fasthttp.StatusOK:
	case code == fasthttp.StatusUnauthorized || code == fasthttp.StatusForbidden:
		return "", errInvalidToken()
	default:
		return "", fmt.Errorf("identity service: status %d", code)
	}

	var out verifyResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode verify response: %w", err)
	}
	if strings.TrimSpace(out.Nickname) == "" {
		return "", errInvalidToken()
	}
	return out.Nickname, nil
}
