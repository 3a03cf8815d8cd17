package password

import "strings"

// Hasher hashes with argon2id and verifies both argon2id and, when a legacy verifier is
// configured, bcrypt hashes. Legacy hashes always report NeedsUpgrade so the engine can
// replace them on the next successful login.
type Hasher struct {
	primary *Argon2
	legacy  *Bcrypt
}

// NewHasher returns a Hasher. legacy may be nil to reject bcrypt hashes.
func NewHasher(primary *Argon2, legacy *Bcrypt) *Hasher {
	return &Hasher{primary: primary, legacy: legacy}
}

// Hash delegates to the argon2id hasher.
func (h *Hasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

// Verify dispatches on the hash encoding.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		return h.primary.Verify(password, encodedHash)
	case IsBcryptHash(encodedHash):
		if h.legacy == nil {
			return false, ErrUnsupportedHash
		}
		if len(password) > h.primary.config.MaxPasswordBytes {
			return false, ErrPasswordTooLong
		}
		return h.legacy.Verify(password, encodedHash)
	default:
		return false, ErrUnsupportedHash
	}
}

// NeedsUpgrade reports whether encodedHash should be replaced with a fresh Hash.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	if IsBcryptHash(encodedHash) {
		return true, nil
	}
	return h.primary.NeedsUpgrade(encodedHash)
}
