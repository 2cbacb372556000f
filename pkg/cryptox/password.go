package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters embedded in every digest.
const (
	memory      = 19 * 1024 // Memory usage in KiB (19 MiB)
	iterations  = 2         // Iteration count
	parallelism = 1         // Number of threads
	keyLength   = 32        // Length of the generated hash
	saltLength  = 16        // Length of the salt
)

// Hasher hashes and verifies passwords using Argon2id with PHC-format
// digests. An optional pepper is mixed into every hash; it is supplied at
// construction so there is no package-level secret state.
type Hasher struct {
	pepper string
}

func NewHasher(pepper string) *Hasher {
	return &Hasher{pepper: pepper}
}

// Hash generates a PHC-format Argon2id digest including salt and parameters.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey(
		[]byte(password+h.pepper),
		salt,
		iterations,
		memory,
		parallelism,
		keyLength,
	)
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory,
		iterations,
		parallelism,
		b64Salt,
		b64Hash,
	), nil
}

// Verify compares a plaintext password against a PHC-format Argon2id digest.
// A malformed digest and a non-matching password are indistinguishable to the
// caller: both report false.
func (h *Hasher) Verify(password, encodedHash string) bool {
	params, salt, expected, ok := parseDigest(encodedHash)
	if !ok {
		return false
	}

	computed := argon2.IDKey(
		[]byte(password+h.pepper),
		salt,
		params.iterations,
		params.memory,
		params.parallelism,
		uint32(len(expected)), // #nosec G115 - digest length is bounded by base64 decode
	)

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

type digestParams struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
}

// parseDigest splits a PHC string of the form
// $argon2id$v=19$m=X,t=Y,p=Z$salt$hash into its components.
func parseDigest(encoded string) (digestParams, []byte, []byte, bool) {
	parts := make([]string, 0, 6)
	start := 0
	for i := range len(encoded) {
		if encoded[i] == '$' {
			parts = append(parts, encoded[start:i])
			start = i + 1
		}
	}
	parts = append(parts, encoded[start:])

	// Expected structure: ["", "argon2id", "v=19", "m=X,t=Y,p=Z", "salt", "hash"]
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return digestParams{}, nil, nil, false
	}

	var p digestParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return digestParams{}, nil, nil, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return digestParams{}, nil, nil, false
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return digestParams{}, nil, nil, false
	}

	return p, salt, hash, true
}
