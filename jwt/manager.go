package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod names the algorithm family used for access tokens.
type SigningMethod string

const (
	// MethodRS256 signs with an RSA private key (PKCS#1 or PKCS#8 PEM).
	MethodRS256 SigningMethod = "rs256"
	// MethodEd25519 signs with an Ed25519 private key (raw or PEM).
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared secret. It has no public key.
	MethodHS256 SigningMethod = "hs256"
)

// TokenTypeAccess is the typ claim carried by every access token.
const TokenTypeAccess = "access"

var (
	// ErrTokenExpired is returned when the exp claim has passed.
	ErrTokenExpired = errors.New("access token expired")
	// ErrTokenInvalid is returned for every other verification failure.
	ErrTokenInvalid = errors.New("access token invalid")
	// ErrNoPublicKey is returned by PublicKeyPEM for symmetric methods.
	ErrNoPublicKey = errors.New("signing method has no public key")
)

// Config configures a [Manager].
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

// Subject is the identity an access token is minted for.
type Subject struct {
	UserID   string
	Username string
	Staff    bool
}

// AccessClaims is the claim set of an access token.
type AccessClaims struct {
	UID       string `json:"uid"`
	Username  string `json:"username,omitempty"`
	Staff     bool   `json:"staff,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access tokens with one key pair.
type Manager struct {
	config    Config
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
}

// NewManager validates cfg and parses its keys once.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	keys, err := loadKeys(cfg.SigningMethod, cfg.PrivateKey, cfg.PublicKey)
	if err != nil {
		return nil, err
	}
	if keys.verify == nil {
		return nil, fmt.Errorf("%s requires a public or private key", cfg.SigningMethod)
	}

	return &Manager{
		config:    cfg,
		method:    keys.method,
		signKey:   keys.sign,
		verifyKey: keys.verify,
	}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}

// CreateAccess signs an access token for sub issued at now. It returns the token
// and its expiry.
func (m *Manager) CreateAccess(sub Subject, jti string, now time.Time) (string, time.Time, error) {
	if m.signKey == nil {
		return "", time.Time{}, errors.New("manager has no signing key")
	}

	expiresAt := now.Add(m.config.AccessTTL)
	claims := AccessClaims{
		UID:       sub.UserID,
		Username:  sub.Username,
		Staff:     sub.Staff,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.UserID,
			ID:        jti,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseAccess verifies tokenStr and returns its claims. Failures are reported as
// ErrTokenExpired or ErrTokenInvalid, joined with the parser's own error.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if m.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return m.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Join(ErrTokenExpired, err)
		}
		return nil, errors.Join(ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != TokenTypeAccess || claims.UID == "" {
		return nil, fmt.Errorf("%w: not an access token", ErrTokenInvalid)
	}

	return claims, nil
}

// PublicKeyPEM returns the verification key as a PKIX PEM block.
func (m *Manager) PublicKeyPEM() ([]byte, error) {
	return encodePublicKeyPEM(m.verifyKey)
}
