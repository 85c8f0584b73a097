package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyToken(t *testing.T) {
	t.Parallel()

	hash, err := hashTokenWithCost("s3cret-token", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !VerifyToken(" s3cret-token ", hash) {
		t.Fatalf("expected token verification to succeed")
	}
	if VerifyToken("wrong-token", hash) {
		t.Fatalf("did not expect wrong token to verify")
	}
	if VerifyToken("", hash) {
		t.Fatalf("did not expect blank token to verify")
	}
}

func TestHashTokenRequiresValue(t *testing.T) {
	t.Parallel()

	if _, err := HashToken("   "); err == nil {
		t.Fatalf("expected blank token to be rejected")
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer   abc ", want: "abc", ok: true},
		{header: "Basic abc", ok: false},
		{header: "Bearer", ok: false},
		{header: "Bearer   ", ok: false},
		{header: "", ok: false},
	}
	for _, tc := range cases {
		got, ok := BearerToken(tc.header)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("BearerToken(%q) = %q, %v; want %q, %v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}
