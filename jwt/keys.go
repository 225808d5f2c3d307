package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type keySet struct {
	method jwt.SigningMethod
	sign   any
	verify any
}

func loadKeys(method SigningMethod, private, public []byte) (keySet, error) {
	switch method {
	case MethodHS256:
		if len(private) < 32 {
			return keySet{}, errors.New("hs256 requires a secret of at least 32 bytes")
		}
		return keySet{method: jwt.SigningMethodHS256, sign: private, verify: private}, nil

	case MethodRS256:
		ks := keySet{method: jwt.SigningMethodRS256}
		if len(private) > 0 {
			key, err := jwt.ParseRSAPrivateKeyFromPEM(private)
			if err != nil {
				return keySet{}, fmt.Errorf("invalid rsa private key: %w", err)
			}
			ks.sign = key
			ks.verify = &key.PublicKey
		}
		if len(public) > 0 {
			key, err := jwt.ParseRSAPublicKeyFromPEM(public)
			if err != nil {
				return keySet{}, fmt.Errorf("invalid rsa public key: %w", err)
			}
			ks.verify = key
		}
		return ks, nil

	case MethodEd25519:
		ks := keySet{method: jwt.SigningMethodEdDSA}
		if len(private) > 0 {
			key, err := parseEdPrivateKey(private)
			if err != nil {
				return keySet{}, err
			}
			ks.sign = key
			ks.verify = key.Public()
		}
		if len(public) > 0 {
			key, err := parseEdPublicKey(public)
			if err != nil {
				return keySet{}, err
			}
			ks.verify = key
		}
		return ks, nil

	default:
		return keySet{}, fmt.Errorf("unsupported signing method %q", method)
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

func encodePublicKeyPEM(key any) ([]byte, error) {
	switch key.(type) {
	case *rsa.PublicKey, ed25519.PublicKey:
	default:
		return nil, ErrNoPublicKey
	}
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// GenerateEd25519PEM creates a fresh Ed25519 key pair encoded as PKCS#8 and PKIX
// PEM blocks. It is meant for development servers started without key files.
func GenerateEd25519PEM() (private, public []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}
	public, err = encodePublicKeyPEM(pub)
	if err != nil {
		return nil, nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}), public, nil
}
