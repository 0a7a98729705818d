package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the fixed signature algorithm for a [Manager].
type SigningMethod string

const (
	// MethodHS256 signs with a symmetric server-held secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an asymmetric Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// Kind discriminates the four token families the engine issues. A token of
// one kind is never accepted where another kind is expected.
type Kind string

const (
	// KindAccess is a short-lived API token.
	KindAccess Kind = "access"
	// KindRefresh exchanges for a new access token.
	KindRefresh Kind = "refresh"
	// KindReset authorizes a single password reset.
	KindReset Kind = "reset"
	// KindVerification authorizes a single email verification.
	KindVerification Kind = "verification"
)

var (
	// ErrMalformed indicates the token failed signature or structure checks.
	ErrMalformed = errors.New("malformed token")
	// ErrExpired indicates the token is past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrWrongKind indicates a kind mismatch (e.g. a refresh token presented
	// where an access token is expected).
	ErrWrongKind = errors.New("wrong token kind")
)

// Config holds the immutable signing parameters for a [Manager].
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte // HS256
	PrivateKey    []byte // Ed25519
	PublicKey     []byte // Ed25519
	Issuer        string
	Leeway        time.Duration
}

// Claims is the signed claim set carried by every engine token.
type Claims struct {
	Kind         Kind  `json:"kind"`
	TokenVersion int64 `json:"token_version"`
	jwt.RegisteredClaims
}

// Manager issues and parses signed tokens with a fixed algorithm.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// Issue signs a token of the given kind for subject. The token_version
// snapshot binds the token to the subject's credential generation; bumping
// the stored version invalidates every previously issued token at parse
// time in the engine.
func (m *Manager) Issue(subject string, kind Kind, tokenVersion int64, ttl time.Duration) (string, *Claims, error) {
	if subject == "" {
		return "", nil, errors.New("empty subject")
	}
	if ttl <= 0 {
		return "", nil, errors.New("non-positive ttl")
	}

	now := time.Now()
	claims := &Claims{
		Kind:         kind,
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	tok := jwt.NewWithClaims(m.method(), claims)
	key, err := m.signKey()
	if err != nil {
		return "", nil, err
	}
	signed, err := tok.SignedString(key)
	if err != nil {
		return "", nil, err
	}

	return signed, claims, nil
}

// Parse verifies signature, structure, expiry, and kind, in that order.
// Revocation and token_version liveness are the caller's responsibility.
func (m *Manager) Parse(tokenStr string, expected Kind) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithIssuedAt(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey()
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrMalformed
	}
	if claims.Kind != expected {
		return nil, ErrWrongKind
	}

	return claims, nil
}

// Remaining reports the time left until the claims expire, clamped at zero.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c == nil || c.ExpiresAt == nil {
		return 0
	}
	left := c.ExpiresAt.Time.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func (m *Manager) signKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return parseEdPrivateKey(m.config.PrivateKey)
	default:
		return m.config.Secret, nil
	}
}

func (m *Manager) verifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(m.config.PublicKey)
	default:
		return m.config.Secret, nil
	}
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
