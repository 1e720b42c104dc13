package jwtx

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// VerifyOptions captures common expectations used by verifiers.
type VerifyOptions struct {
	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Audience values the token must contain (claims.aud). Empty means "don't care".
	Audience []string

	// Leeway allows small clock skew when validating exp/nbf.
	Leeway time.Duration

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrNoKey       = errors.New("jwtx: no verification key configured")
)

type keyVerifier struct {
	method string
	key    any
	opts   VerifyOptions
}

// NewHS256Verifier verifies HMAC-SHA256 tokens against a shared secret.
func NewHS256Verifier(secret []byte, opts VerifyOptions) (Verifier, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("%w: HS256 secret must be at least 32 bytes", ErrNoKey)
	}
	return &keyVerifier{method: jwt.SigningMethodHS256.Alg(), key: secret, opts: opts}, nil
}

// NewEdDSAVerifier verifies Ed25519 tokens against pub.
func NewEdDSAVerifier(pub ed25519.PublicKey, opts VerifyOptions) (Verifier, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: bad Ed25519 public key", ErrNoKey)
	}
	return &keyVerifier{method: jwt.SigningMethodEdDSA.Alg(), key: pub, opts: opts}, nil
}

// Verify parses token, checks the signature with the configured key and
// algorithm, then the issuer, audience and validity window.
func (v *keyVerifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{v.method}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidSig, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrMalformed
	}

	now := time.Now()
	if v.opts.Now != nil {
		now = v.opts.Now()
	}
	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(v.opts.Audience); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiryWithLeeway(now, v.opts.Leeway); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}

// LoadEd25519PublicKey reads a PEM-encoded PKIX Ed25519 public key.
func LoadEd25519PublicKey(path string) (ed25519.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("jwtx: no PEM block in public key file")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	ed, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("jwtx: public key is not Ed25519")
	}
	return ed, nil
}
