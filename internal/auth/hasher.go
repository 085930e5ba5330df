// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Argon2idParams are the cost parameters embedded in every hash produced by
// Argon2idHasher.
type Argon2idParams struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultArgon2idParams are the OWASP-recommended argon2id parameters.
var DefaultArgon2idParams = Argon2idParams{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a PHC-encoded hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or an error
	// coded CodeInvalidHash when the hash cannot be parsed.
	Verify(password, hash string) (bool, error)
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	params Argon2idParams
}

// NewArgon2idHasher creates an Argon2idHasher that hashes with params.
// Verification always uses the parameters stored in the hash itself.
func NewArgon2idHasher(params Argon2idParams) *Argon2idHasher {
	return &Argon2idHasher{params: params}
}

// Hash produces an argon2id hash in PHC string format:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the stored salt and parameters and compares
// in constant time.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	decoded, err := decodeArgon2idHash(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), decoded.salt,
		decoded.params.Time, decoded.params.Memory, decoded.params.Threads, decoded.params.KeyLen)

	return subtle.ConstantTimeCompare(computed, decoded.key) == 1, nil
}

// Bounds on parameters read from a stored hash. A corrupt row must not pin a
// request goroutine or exhaust process memory.
const (
	maxArgon2idMemory     = 1 << 20 // KiB
	maxArgon2idIterations = 16
	minArgon2idSaltLen    = 8
	maxArgon2idSaltLen    = 64
)

type argon2idHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func decodeArgon2idHash(encoded string) (*argon2idHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, oops.Code(CodeInvalidHash).Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, oops.Code(CodeInvalidHash).Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code(CodeInvalidHash).With("field", "version").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code(CodeInvalidHash).Errorf("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return nil, oops.Code(CodeInvalidHash).With("field", "params").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return nil, oops.Code(CodeInvalidHash).Errorf("threads value %d out of range", threads)
	}
	if iterations == 0 || memory == 0 {
		return nil, oops.Code(CodeInvalidHash).Errorf("zero cost parameter")
	}
	if memory > maxArgon2idMemory {
		return nil, oops.Code(CodeInvalidHash).With("field", "memory").Errorf("memory cost %d KiB exceeds %d", memory, maxArgon2idMemory)
	}
	if iterations > maxArgon2idIterations {
		return nil, oops.Code(CodeInvalidHash).With("field", "iterations").Errorf("time cost %d exceeds %d", iterations, maxArgon2idIterations)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code(CodeInvalidHash).With("field", "salt").Wrap(err)
	}
	if len(salt) < minArgon2idSaltLen || len(salt) > maxArgon2idSaltLen {
		return nil, oops.Code(CodeInvalidHash).With("field", "salt").Errorf("invalid salt length: %d", len(salt))
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code(CodeInvalidHash).With("field", "key").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return nil, oops.Code(CodeInvalidHash).Errorf("invalid hash key length: %d", len(key))
	}

	return &argon2idHash{
		params: Argon2idParams{
			Time:    iterations,
			Memory:  memory,
			Threads: uint8(threads),
			SaltLen: uint32(len(salt)),
			KeyLen:  uint32(len(key)),
		},
		salt: salt,
		key:  key,
	}, nil
}
