package jwt

import (
	"errors"
	"testing"
	"time"
)

// FuzzDecode feeds arbitrary strings to the decoder. Every failure must map to one of the
// two decode errors and must never panic.
func FuzzDecode(f *testing.F) {
	now := time.Unix(1_700_000_000, 0)
	c, err := NewCodec(Config{AccessTTL: time.Hour, PrivateKey: testSecret, Now: fixedClock(now)})
	if err != nil {
		f.Fatal(err)
	}

	valid, _, err := c.Issue("1", "s1")
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.e30.")
	f.Add(valid + "x")

	f.Fuzz(func(t *testing.T, token string) {
		claims, err := c.Decode(token)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrExpiredToken) {
				t.Fatalf("unexpected error class: %v", err)
			}
			return
		}
		if !claims.complete() {
			t.Fatalf("accepted incomplete claims: %+v", claims)
		}
	})
}
