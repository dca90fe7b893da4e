package lti

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"math/big"
	"os"
	"sync"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Roberto640Alvarado/sae-LTI/internal/models"
)

// ToolKey is the RSA key the tool signs client assertions with.
type ToolKey struct {
	ID      string
	Private *rsa.PrivateKey
}

// JWK is the public representation of a tool key.
type JWK struct {
	KeyType   string `json:"kty"`
	Use       string `json:"use"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid"`
	Modulus   string `json:"n"`
	Exponent  string `json:"e"`
}

// JWKSet is served on the tool keys endpoint.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// LoadToolKey reads a PEM encoded RSA private key from disk.
func LoadToolKey(path string) (ToolKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ToolKey{}, fmt.Errorf("read tool key: %w", err)
	}

	private, err := jwt.ParseRSAPrivateKeyFromPEM(raw)
	if err != nil {
		return ToolKey{}, fmt.Errorf("parse tool key: %w", err)
	}

	return newToolKey(private)
}

// GenerateToolKey creates an ephemeral key for development setups.
func GenerateToolKey() (ToolKey, error) {
	private, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return ToolKey{}, fmt.Errorf("generate tool key: %w", err)
	}

	return newToolKey(private)
}

func newToolKey(private *rsa.PrivateKey) (ToolKey, error) {
	der, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return ToolKey{}, fmt.Errorf("encode tool public key: %w", err)
	}
	sum := sha256.Sum256(der)

	return ToolKey{
		ID:      base64.RawURLEncoding.EncodeToString(sum[:16]),
		Private: private,
	}, nil
}

// JWKS returns the public key set exposed to platforms.
func (k ToolKey) JWKS() JWKSet {
	if k.Private == nil {
		return JWKSet{Keys: []JWK{}}
	}

	public := k.Private.PublicKey
	return JWKSet{Keys: []JWK{{
		KeyType:   "RSA",
		Use:       "sig",
		Algorithm: jwt.SigningMethodRS256.Alg(),
		KeyID:     k.ID,
		Modulus:   base64.RawURLEncoding.EncodeToString(public.N.Bytes()),
		Exponent:  base64.RawURLEncoding.EncodeToString(big.NewInt(int64(public.E)).Bytes()),
	}}}
}

// KeySource resolves the verification keys of a platform.
type KeySource interface {
	Keyfunc(ctx context.Context, platform models.Platform) (jwt.Keyfunc, error)
}

// JWKSKeySource fetches and refreshes remote platform key sets, one per JWKS URL.
type JWKSKeySource struct {
	ctx   context.Context
	mu    sync.Mutex
	cache map[string]keyfunc.Keyfunc
}

// NewJWKSKeySource builds a key source whose background refreshes stop with ctx.
func NewJWKSKeySource(ctx context.Context) *JWKSKeySource {
	return &JWKSKeySource{ctx: ctx, cache: make(map[string]keyfunc.Keyfunc)}
}

func (s *JWKSKeySource) Keyfunc(_ context.Context, platform models.Platform) (jwt.Keyfunc, error) {
	if platform.AuthMethod != models.PlatformAuthMethodJWKSet {
		return nil, fmt.Errorf("unsupported platform auth method %q", platform.AuthMethod)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache[platform.AuthKey]; ok {
		return cached.Keyfunc, nil
	}

	kf, err := keyfunc.NewDefaultCtx(s.ctx, []string{platform.AuthKey})
	if err != nil {
		return nil, fmt.Errorf("load platform key set: %w", err)
	}
	s.cache[platform.AuthKey] = kf

	return kf.Keyfunc, nil
}
