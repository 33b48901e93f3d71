package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the caller identity the clinic API acts on.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c Claims) UserID() string { return c.Subject }

// KeySource resolves RSA verification keys by kid.
type KeySource interface {
	Get(keyID string) (any, error)
}

// Verifier accepts HS256 tokens signed with a shared secret and, when a key
// source is configured, RS256 tokens published through JWKS.
type Verifier struct {
	secret []byte
	keys   KeySource
	issuer string
	leeway time.Duration
}

type VerifierConfig struct {
	HMACSecret string
	Keys       KeySource
	Issuer     string
	Leeway     time.Duration
}

func NewVerifier(cfg VerifierConfig) *Verifier {
	return &Verifier{
		secret: []byte(strings.TrimSpace(cfg.HMACSecret)),
		keys:   cfg.Keys,
		issuer: strings.TrimSpace(cfg.Issuer),
		leeway: cfg.Leeway,
	}
}

func (v *Verifier) Enabled() bool {
	return v != nil && (len(v.secret) > 0 || v.keys != nil)
}

func (v *Verifier) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods()),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyFunc, opts...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

func (v *Verifier) methods() []string {
	var m []string
	if len(v.secret) > 0 {
		m = append(m, jwt.SigningMethodHS256.Alg())
	}
	if v.keys != nil {
		m = append(m, jwt.SigningMethodRS256.Alg())
	}
	return m
}

func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return v.secret, nil
	case *jwt.SigningMethodRSA:
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		return v.keys.Get(kid)
	default:
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
}

// SignHS256 issues a token for local tooling and tests.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
