package token

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

const derivedKeyLength = 32

// DeriveSigners derives independent access and refresh signing keys from one
// master secret using HKDF-SHA256. Keeping the keys separate means a refresh
// token can never verify as an access token even if the type claim check is
// bypassed.
func DeriveSigners(masterSecret []byte) (access, refresh Signer, err error) {
	if len(masterSecret) == 0 {
		return nil, nil, errors.New("master secret is empty")
	}
	accessKey, err := deriveKey(masterSecret, "marketedge-access-token")
	if err != nil {
		return nil, nil, errors.Wrap(err, "deriving access key")
	}
	refreshKey, err := deriveKey(masterSecret, "marketedge-refresh-token")
	if err != nil {
		return nil, nil, errors.Wrap(err, "deriving refresh key")
	}
	return NewHMACSigner(accessKey), NewHMACSigner(refreshKey), nil
}

func deriveKey(masterSecret []byte, info string) ([]byte, error) {
	key := make([]byte, derivedKeyLength)
	reader := hkdf.New(sha256.New, masterSecret, nil, []byte(info))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// RandomSecret generates a master secret for development environments where
// AUTH_SECRET is not configured. Tokens do not survive a restart.
func RandomSecret() ([]byte, error) {
	secret := make([]byte, derivedKeyLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, errors.Wrap(err, "generating random secret")
	}
	return secret, nil
}
