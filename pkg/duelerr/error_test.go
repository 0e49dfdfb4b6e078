package duelerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestConstructorsCarryKindAndMessage(t *testing.T) {
	cases := []struct {
		err  *Error
		kind Kind
		msg  string
	}{
		{Validationf("invalid %s", "email"), KindValidation, "invalid email"},
		{Authorizationf("invalid token"), KindAuthorization, "invalid token"},
		{NotFoundf("game with id %s does not exist", "g1"), KindNotFound, "game with id g1 does not exist"},
		{Domainf("move is not allowed"), KindDomain, "move is not allowed"},
	}
	for _, tc := range cases {
		if tc.err.Kind != tc.kind {
			t.Fatalf("%q: kind = %v", tc.msg, tc.err.Kind)
		}
		if tc.err.Error() != tc.msg {
			t.Fatalf("message = %q, want %q", tc.err.Error(), tc.msg)
		}
		if KindOf(tc.err) != tc.kind {
			t.Fatalf("%q: KindOf = %v", tc.msg, KindOf(tc.err))
		}
	}
}

func TestInternalHidesCauseFromMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause)
	if err.Error() != "internal error" {
		t.Fatalf("message = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause must stay reachable through Unwrap")
	}
	if KindOf(err) != KindInternal {
		t.Fatalf("kind = %v", KindOf(err))
	}
}

func TestKindOfWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("handling request: %w", Domainf("game has not started"))
	if KindOf(wrapped) != KindDomain {
		t.Fatalf("kind = %v", KindOf(wrapped))
	}
	if !IsKind(wrapped, KindDomain) {
		t.Fatal("IsKind must see through wrapping")
	}
}

func TestKindOfForeignError(t *testing.T) {
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatal("foreign errors default to internal")
	}
	if IsKind(errors.New("plain"), KindDomain) {
		t.Fatal("foreign errors match no specific kind")
	}
}
