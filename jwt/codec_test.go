package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func newTestCodec(t *testing.T, now time.Time) *Codec {
	t.Helper()
	c, err := NewCodec(Config{AccessTTL: time.Hour, PrivateKey: testSecret, Now: fixedClock(now)})
	require.NoError(t, err)
	return c
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := newTestCodec(t, now)

	claims := Claims{UserID: "42", SessionID: "sess-1", Type: TypeAccess, ExpiresAt: now.Add(time.Minute).Unix()}
	token, err := c.Encode(claims)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	again, err := c.Encode(claims)
	require.NoError(t, err)
	assert.Equal(t, token, again, "encoding must be deterministic")

	got, err := c.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, claims, got)
}

func TestIssueUsesAccessTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := newTestCodec(t, now)

	token, claims, err := c.Issue("7", "s")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt)
	assert.Equal(t, TypeAccess, claims.Type)

	decoded, err := c.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, claims, decoded)
}

func TestDecodeRejectsTamperedSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := newTestCodec(t, now)

	token, _, err := c.Issue("1", "s1")
	require.NoError(t, err)

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	sigStart := strings.LastIndexByte(token, '.') + 1
	require.Greater(t, len(token), sigStart)

	// Every single-character change, including the trailing character whose low
	// bits are unused by the signature bytes, must be rejected.
	for pos := sigStart; pos < len(token); pos++ {
		for i := 0; i < len(alphabet); i++ {
			ch := alphabet[i]
			if ch == token[pos] {
				continue
			}
			tampered := token[:pos] + string(ch) + token[pos+1:]
			if _, err := c.Decode(tampered); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("altered signature accepted: pos=%d %q->%q err=%v", pos, token[pos], ch, err)
			}
		}
	}
}

func TestDecodeRejectsTamperedPayload(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := newTestCodec(t, now)

	token, _, err := c.Issue("1", "s1")
	require.NoError(t, err)

	other, _, err := c.Issue("2", "s1")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	otherParts := strings.Split(other, ".")
	spliced := parts[0] + "." + otherParts[1] + "." + parts[2]

	_, err = c.Decode(spliced)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeExpired(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	issuer := newTestCodec(t, issuedAt)
	token, claims, err := issuer.Issue("1", "s1")
	require.NoError(t, err)

	atExpiry := newTestCodec(t, claims.Expiry())
	_, err = atExpiry.Decode(token)
	assert.ErrorIs(t, err, ErrExpiredToken)

	later := newTestCodec(t, claims.Expiry().Add(time.Second))
	_, err = later.Decode(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeLeewayToleratesSkew(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	issuer := newTestCodec(t, now)
	token, claims, err := issuer.Issue("1", "s1")
	require.NoError(t, err)

	c, err := NewCodec(Config{
		AccessTTL:  time.Hour,
		PrivateKey: testSecret,
		Leeway:     30 * time.Second,
		Now:        fixedClock(claims.Expiry().Add(10 * time.Second)),
	})
	require.NoError(t, err)

	_, err = c.Decode(token)
	assert.NoError(t, err)
}

func TestDecodeForgedAndExpiredIsInvalid(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := newTestCodec(t, now)

	forger, err := NewCodec(Config{
		AccessTTL:  time.Hour,
		PrivateKey: []byte("ffffffffffffffffffffffffffffffff"),
		Now:        fixedClock(now.Add(-2 * time.Hour)),
	})
	require.NoError(t, err)

	token, _, err := forger.Issue("1", "s1")
	require.NoError(t, err)

	_, err = c.Decode(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.NotErrorIs(t, err, ErrExpiredToken)
}

func TestDecodeRejectsWrongAlgorithm(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := newTestCodec(t, now)

	wire := wireClaims{
		UserID:    "1",
		SessionID: "s1",
		Type:      TypeAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, wire).SignedString(testSecret)
	require.NoError(t, err)

	_, err = c.Decode(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, wire).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Decode(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeRejectsIncompleteClaims(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := newTestCodec(t, now)
	exp := gjwt.NewNumericDate(now.Add(time.Minute))

	cases := map[string]wireClaims{
		"missing user":    {SessionID: "s1", Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: exp}},
		"missing session": {UserID: "1", Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: exp}},
		"refresh type":    {UserID: "1", SessionID: "s1", Type: "refresh", RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: exp}},
		"missing exp":     {UserID: "1", SessionID: "s1", Type: TypeAccess},
	}

	for name, wire := range cases {
		t.Run(name, func(t *testing.T) {
			token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, wire).SignedString(testSecret)
			require.NoError(t, err)

			_, err = c.Decode(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	c := newTestCodec(t, time.Now())

	for _, token := range []string{"", "abc", "a.b.c", "....", "Token x"} {
		_, err := c.Decode(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestEncodeRejectsIncompleteClaims(t *testing.T) {
	c := newTestCodec(t, time.Now())

	_, err := c.Encode(Claims{UserID: "1", Type: TypeAccess, ExpiresAt: 1})
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestIssuerPinning(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	a, err := NewCodec(Config{AccessTTL: time.Hour, PrivateKey: testSecret, Issuer: "conduit", Now: fixedClock(now)})
	require.NoError(t, err)
	b, err := NewCodec(Config{AccessTTL: time.Hour, PrivateKey: testSecret, Issuer: "other", Now: fixedClock(now)})
	require.NoError(t, err)

	token, _, err := b.Issue("1", "s1")
	require.NoError(t, err)

	_, err = a.Decode(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := NewCodec(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv})
	require.NoError(t, err)
	verifier, err := NewCodec(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	require.NoError(t, err)

	token, claims, err := signer.Issue("u", "s")
	require.NoError(t, err)

	got, err := verifier.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, claims, got)

	_, err = verifier.Encode(claims)
	assert.Error(t, err, "verify-only codec must not sign")
}

func TestNewCodecValidation(t *testing.T) {
	_, err := NewCodec(Config{AccessTTL: time.Hour, PrivateKey: []byte("short")})
	assert.Error(t, err)

	_, err = NewCodec(Config{PrivateKey: testSecret})
	assert.Error(t, err)

	_, err = NewCodec(Config{AccessTTL: time.Hour, PrivateKey: testSecret, Leeway: time.Hour})
	assert.Error(t, err)

	_, err = NewCodec(Config{AccessTTL: time.Hour, PrivateKey: testSecret, SigningMethod: "rs256"})
	assert.Error(t, err)

	_, err = NewCodec(Config{AccessTTL: time.Hour, SigningMethod: MethodEd25519})
	assert.Error(t, err)
}
