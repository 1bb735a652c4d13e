package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrCorruptToken reports a stored ciphertext that failed authentication or
// is malformed. Tokens in this state cannot be recovered; the owning
// integration needs to be re-authorized.
var ErrCorruptToken = errors.New("cryptox: corrupt token")

const (
	// boxSalt is a fixed application-level salt for key derivation. The
	// operator secret is the only secret input; the salt just namespaces
	// the derived key to this use.
	boxSalt = "somnus-secret-box-v1"

	// PlaintextPrefix marks tokens stored without encryption. Only produced
	// when no operator secret is configured (local development).
	PlaintextPrefix = "plain::"

	gcmTagSize = 16

	// Argon2id parameters for the box key. Derivation happens once per
	// process, so the cost can be on the heavy side.
	boxKDFIterations  = 3
	boxKDFMemory      = 64 * 1024
	boxKDFParallelism = 4
	boxKeyLength      = 32
)

// SecretBox provides authenticated symmetric encryption for short secrets
// (OAuth access and refresh tokens) stored at rest. The key is derived from
// an operator-supplied secret via Argon2id once at construction.
//
// Ciphertext format: hex(nonce):hex(tag):hex(ciphertext). A fresh random
// nonce is generated for every Encrypt call.
type SecretBox struct {
	aead     cipher.AEAD
	insecure bool
}

// NewSecretBox derives the box key from secret and returns a ready box.
// An empty secret yields an insecure passthrough box: Encrypt stores values
// with a PlaintextPrefix marker instead of encrypting. Callers must surface
// that condition loudly; it is only acceptable for local development.
func NewSecretBox(secret string) (*SecretBox, error) {
	if secret == "" {
		return &SecretBox{insecure: true}, nil
	}

	key := argon2.IDKey(
		[]byte(secret),
		[]byte(boxSalt),
		boxKDFIterations,
		boxKDFMemory,
		boxKDFParallelism,
		boxKeyLength,
	)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}

	return &SecretBox{aead: gcm}, nil
}

// Insecure reports whether the box operates in passthrough mode.
func (b *SecretBox) Insecure() bool { return b.insecure }

// Encrypt seals plaintext and returns the encoded ciphertext token.
func (b *SecretBox) Encrypt(plaintext string) (string, error) {
	if b.insecure {
		return PlaintextPrefix + plaintext, nil
	}

	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("cryptox: generate nonce: %w", err)
	}

	sealed := b.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	), nil
}

// Decrypt opens an encoded ciphertext token. It accepts PlaintextPrefix
// tokens regardless of mode so a box configured with a secret can still read
// development data. Any malformed encoding or failed tag verification
// returns ErrCorruptToken.
func (b *SecretBox) Decrypt(token string) (string, error) {
	if rest, ok := strings.CutPrefix(token, PlaintextPrefix); ok {
		return rest, nil
	}
	if b.insecure {
		// Encrypted token but no key configured; undecryptable.
		return "", ErrCorruptToken
	}

	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return "", ErrCorruptToken
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != b.aead.NonceSize() {
		return "", ErrCorruptToken
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != gcmTagSize {
		return "", ErrCorruptToken
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrCorruptToken
	}

	plaintext, err := b.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrCorruptToken
	}
	return string(plaintext), nil
}
