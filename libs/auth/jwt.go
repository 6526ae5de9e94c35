package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// Claims identifies the caller. ArtistID scopes write access to one artist's schedule.
type Claims struct {
	ArtistID string `json:"artist_id,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// CanManage reports whether the caller may mutate artistID's schedule.
func (c *Claims) CanManage(artistID string) bool {
	if c == nil {
		return false
	}
	return c.Role == RoleAdmin || (c.ArtistID != "" && c.ArtistID == artistID)
}

// CanBook reports whether the caller may request a booking on artistID's schedule. Customers
// may book any artist; managing the schedule stays with the artist and admins.
func (c *Claims) CanBook(artistID string) bool {
	if c == nil {
		return false
	}
	return c.Role == RoleCustomer || c.CanManage(artistID)
}

// KeySource resolves RS256 public keys by kid; JWKSClient implements it.
type KeySource interface {
	Get(ctx context.Context, keyID string) (*rsa.PublicKey, error)
}

// Verifier validates bearer tokens signed with an HS256 secret, RS256 keys, or both.
type Verifier struct {
	secret []byte
	keys   KeySource
	issuer string
	leeway time.Duration
}

type VerifierOptions struct {
	HS256Secret string
	Keys        KeySource
	Issuer      string
	Leeway      time.Duration
}

func NewVerifier(opts VerifierOptions) (*Verifier, error) {
	if opts.HS256Secret == "" && opts.Keys == nil {
		return nil, errors.New("auth: no signing secret or key source configured")
	}
	return &Verifier{
		secret: []byte(opts.HS256Secret),
		keys:   opts.Keys,
		issuer: opts.Issuer,
		leeway: opts.Leeway,
	}, nil
}

func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods()),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		switch t.Method.Alg() {
		case jwt.SigningMethodHS256.Alg():
			return v.secret, nil
		case jwt.SigningMethodRS256.Alg():
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			return v.keys.Get(ctx, kid)
		default:
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func (v *Verifier) methods() []string {
	var out []string
	if len(v.secret) > 0 {
		out = append(out, jwt.SigningMethodHS256.Alg())
	}
	if v.keys != nil {
		out = append(out, jwt.SigningMethodRS256.Alg())
	}
	return out
}

// SignHS256 issues a token; used by schedulectl and tests.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// NewClaims builds claims for subject valid for ttl.
func NewClaims(subject, artistID, role string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		ArtistID: artistID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}
