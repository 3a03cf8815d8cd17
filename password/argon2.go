package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 8
	algorithmID           = "argon2id"
)

// DefaultMaxPasswordBytes bounds hashing work when Config.MaxPasswordBytes is zero.
const DefaultMaxPasswordBytes = 1024

// Config holds argon2id cost parameters. MaxPasswordBytes caps the input length accepted
// by Hash and Verify.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// Argon2 hashes passwords with argon2id and encodes them in PHC format.
type Argon2 struct {
	config Config
}

var (
	// ErrPasswordTooShort is returned by Hash for passwords under the minimum length.
	ErrPasswordTooShort = errors.New("password must be at least 8 bytes")
	// ErrPasswordTooLong is returned for passwords over MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrUnsupportedHash is returned when no configured verifier understands the encoding.
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

// phcHash is the decoded form of "$argon2id$v=19$m=..,t=..,p=..$salt$hash".
type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (h phcHash) String() string {
	return fmt.Sprintf("$%s$v=%d$%s$%s$%s",
		algorithmID,
		argon2.Version,
		formatParams(h.memory, h.time, h.parallelism),
		base64.StdEncoding.EncodeToString(h.salt),
		base64.StdEncoding.EncodeToString(h.key),
	)
}

func formatParams(memory, time uint32, parallelism uint8) string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", memory, time, parallelism)
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}

	return &Argon2{config: cfg}, nil
}

// Hash returns a PHC-encoded argon2id hash with a fresh random salt.
func (a *Argon2) Hash(password string) (string, error) {
	// Length is measured in bytes; the input is hashed as given.
	if len(password) < minPassBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > a.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	cfg := a.config
	return phcHash{
		memory:      cfg.Memory,
		time:        cfg.Time,
		parallelism: cfg.Parallelism,
		salt:        salt,
		key:         argon2.IDKey([]byte(password), salt, cfg.Time, cfg.Memory, cfg.Parallelism, cfg.KeyLength),
	}.String(), nil
}

// Verify reports whether password matches encodedHash in constant time. The cost
// parameters are taken from the hash, not from the receiver.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.key)))
	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker parameters than the
// receiver's.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	cfg := a.config
	weaker := cfg.Memory > parsed.memory ||
		cfg.Time > parsed.time ||
		cfg.Parallelism > parsed.parallelism ||
		cfg.KeyLength != uint32(len(parsed.key))
	return weaker, nil
}

func parsePHC(encoded string) (*phcHash, error) {
	rest, ok := strings.CutPrefix(encoded, "$"+algorithmID+"$")
	if !ok {
		if strings.Count(encoded, "$") != 5 {
			return nil, errors.New("invalid PHC format")
		}
		return nil, errors.New("unsupported algorithm")
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return nil, errors.New("invalid PHC format")
	}
	versionField, paramField, saltField, keyField := fields[0], fields[1], fields[2], fields[3]

	if versionField != fmt.Sprintf("v=%d", argon2.Version) {
		return nil, errors.New("unsupported argon2 version")
	}

	var h phcHash
	if err := h.parseParams(paramField); err != nil {
		return nil, err
	}

	var err error
	if h.salt, err = base64.StdEncoding.DecodeString(saltField); err != nil {
		return nil, errors.New("invalid salt encoding")
	}
	if len(h.salt) < int(minSaltLength) {
		return nil, errors.New("invalid salt length")
	}
	if h.key, err = base64.StdEncoding.DecodeString(keyField); err != nil {
		return nil, errors.New("invalid hash encoding")
	}
	if len(h.key) == 0 {
		return nil, errors.New("invalid hash length")
	}

	return &h, nil
}

// parseParams accepts only the canonical "m=..,t=..,p=.." form written by Hash.
func (h *phcHash) parseParams(field string) error {
	var (
		memory, time uint32
		parallelism  uint8
	)
	if _, err := fmt.Sscanf(field, "m=%d,t=%d,p=%d", &memory, &time, &parallelism); err != nil {
		return errors.New("invalid parameter format")
	}
	if formatParams(memory, time, parallelism) != field {
		return errors.New("invalid parameter format")
	}
	if memory < minMemoryKB || time < minTimeCost || parallelism < minParallelism {
		return errors.New("parameters below minimum cost")
	}

	h.memory, h.time, h.parallelism = memory, time, parallelism
	return nil
}

func validateConfig(cfg Config) error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{cfg.MaxPasswordBytes >= 0, "MaxPasswordBytes must not be negative"},
		{cfg.Memory >= minMemoryKB, fmt.Sprintf("Memory must be at least %d KiB", minMemoryKB)},
		{cfg.Time >= minTimeCost, fmt.Sprintf("Time must be at least %d", minTimeCost)},
		{cfg.Parallelism >= minParallelism, fmt.Sprintf("Parallelism must be at least %d", minParallelism)},
		{cfg.SaltLength >= minSaltLength, fmt.Sprintf("SaltLength must be at least %d bytes", minSaltLength)},
		{cfg.KeyLength >= minKeyLength, fmt.Sprintf("KeyLength must be at least %d bytes", minKeyLength)},
	}
	for _, c := range checks {
		if !c.ok {
			return errors.New("argon2 config: " + c.msg)
		}
	}
	return nil
}
