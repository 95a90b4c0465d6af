package store

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// sealedPrefix marks params encrypted at rest.
const sealedPrefix = "sealed:v1:"

var errNoKey = errors.New("params are encrypted but no secret key is configured")

// sealer encrypts stored params with NaCl secretbox. A nil sealer stores
// params in the clear.
type sealer struct {
	key [32]byte
}

func newSealer(secret string) *sealer {
	if secret == "" {
		return nil
	}
	return &sealer{key: sha256.Sum256([]byte(secret))}
}

func (s *sealer) seal(plain []byte) (string, error) {
	if s == nil {
		return string(plain), nil
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], plain, &nonce, &s.key)
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

func (s *sealer) open(stored string) ([]byte, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return []byte(stored), nil
	}
	if s == nil {
		return nil, errNoKey
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return nil, fmt.Errorf("decoding sealed params: %w", err)
	}
	if len(raw) < 24 {
		return nil, errors.New("sealed params too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("sealed params failed authentication (wrong secret key?)")
	}
	return plain, nil
}
