package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TypeAccess is the only token type the codec issues or accepts.
const TypeAccess = "access"

const (
	minHMACKeyBytes = 32
	maxLeeway       = 2 * time.Minute
)

var (
	// ErrInvalidToken is returned for tokens that fail signature verification, cannot be
	// parsed, or carry missing or unexpected claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for correctly signed tokens whose exp is not in the future.
	ErrExpiredToken = errors.New("expired token")
	// ErrInvalidClaims is returned by Encode when required claims are missing.
	ErrInvalidClaims = errors.New("invalid claims")
)

// SigningMethod selects the signature algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// Config holds the immutable key material and lifetimes for a Codec.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	// PrivateKey is the HMAC secret for HS256, or the Ed25519 private key (raw or PEM).
	PrivateKey []byte
	// PublicKey is the Ed25519 verification key (raw or PEM). Unused for HS256.
	PublicKey []byte
	Issuer    string
	// Leeway widens the expiry comparison. Zero means no clock-skew tolerance.
	Leeway time.Duration
	Now    func() time.Time
}

// Claims is the decoded payload of an access token.
type Claims struct {
	UserID    string
	SessionID string
	Type      string
	// ExpiresAt is the absolute expiry in Unix seconds.
	ExpiresAt int64
}

// Expiry returns ExpiresAt as a time.Time.
func (c Claims) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

func (c Claims) complete() bool {
	return c.UserID != "" && c.SessionID != "" && c.Type == TypeAccess && c.ExpiresAt > 0
}

type wireClaims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access tokens. It is safe for concurrent use.
type Codec struct {
	config    Config
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
}

// NewCodec validates cfg and resolves its keys once.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid access TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}

	c := &Codec{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACKeyBytes {
			return nil, fmt.Errorf("hs256 requires a secret of at least %d bytes", minHMACKeyBytes)
		}
		secret := append([]byte(nil), cfg.PrivateKey...)
		c.method = jwt.SigningMethodHS256
		c.signKey = secret
		c.verifyKey = secret
	case MethodEd25519:
		c.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			c.signKey = priv
			c.verifyKey = priv.Public()
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			c.verifyKey = pub
		}
		if c.verifyKey == nil {
			return nil, errors.New("ed25519 requires a public or private key")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return c, nil
}

// AccessTTL reports the configured token lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.config.AccessTTL
}

// Issue builds access claims for a session expiring AccessTTL from now and encodes them.
func (c *Codec) Issue(userID, sessionID string) (string, Claims, error) {
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		Type:      TypeAccess,
		ExpiresAt: c.config.Now().Add(c.config.AccessTTL).Unix(),
	}
	token, err := c.Encode(claims)
	if err != nil {
		return "", Claims{}, err
	}
	return token, claims, nil
}

// Encode signs claims into a compact header.payload.signature string.
// The same claims always produce the same token.
func (c *Codec) Encode(claims Claims) (string, error) {
	if !claims.complete() {
		return "", ErrInvalidClaims
	}
	if c.signKey == nil {
		return "", errors.New("codec has no signing key")
	}

	wire := wireClaims{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		Type:      claims.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Unix(claims.ExpiresAt, 0)),
			Issuer:    c.config.Issuer,
		},
	}

	return jwt.NewWithClaims(c.method, wire).SignedString(c.signKey)
}

// Decode verifies token and returns its claims.
//
// The signature is checked before any claim, so a forged token is always
// ErrInvalidToken even when its exp is in the past. Only correctly signed tokens can
// yield ErrExpiredToken.
func (c *Codec) Decode(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalidToken
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.config.Now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(token, &wireClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	wire, ok := parsed.Claims.(*wireClaims)
	if !ok || !parsed.Valid || wire.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}

	claims := Claims{
		UserID:    wire.UserID,
		SessionID: wire.SessionID,
		Type:      wire.Type,
		ExpiresAt: wire.ExpiresAt.Unix(),
	}
	if !claims.complete() {
		return Claims{}, fmt.Errorf("%w: missing or unexpected claims", ErrInvalidToken)
	}

	return claims, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
