package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

const opaqueTokenSize = 32

// ErrMalformedToken is returned when a presented opaque token does not decode to
// the expected number of random bytes.
var ErrMalformedToken = errors.New("malformed opaque token")

// OpaqueToken is a freshly generated bearer secret and the id it is stored under.
type OpaqueToken struct {
	// Raw is handed to the client and never persisted.
	Raw string
	// LookupID is the SHA-256 of the raw bytes, hex encoded.
	LookupID string
}

// NewOpaqueToken draws 32 random bytes and returns them base64url encoded along
// with their lookup id.
func NewOpaqueToken() (OpaqueToken, error) {
	var buf [opaqueTokenSize]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return OpaqueToken{}, err
	}
	return OpaqueToken{
		Raw:      base64.RawURLEncoding.EncodeToString(buf[:]),
		LookupID: lookupID(buf[:]),
	}, nil
}

// LookupID derives the storage id of a presented token. Tokens that are not
// base64url or carry the wrong number of bytes yield ErrMalformedToken.
func LookupID(raw string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil || len(decoded) != opaqueTokenSize {
		return "", ErrMalformedToken
	}
	return lookupID(decoded), nil
}

func lookupID(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// NewFamilyID returns a random UUID naming a refresh-token family.
func NewFamilyID() string {
	return uuid.NewString()
}

// NewTokenJTI returns a random UUID for the jti claim of an access token.
func NewTokenJTI() string {
	return uuid.NewString()
}
