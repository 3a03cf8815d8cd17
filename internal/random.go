package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ChallengeID identifies a stored recovery challenge.
type ChallengeID [16]byte

const (
	recoveryTokenRawSize = 48
	recoverySecretSize   = 32
)

func NewChallengeID() (ChallengeID, error) {
	var id ChallengeID
	_, err := rand.Read(id[:])
	return id, err
}

func (c ChallengeID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(c[:])
}

func ParseChallengeID(value string) (ChallengeID, error) {
	var id ChallengeID

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("invalid challenge id size")
	}

	copy(id[:], raw)
	return id, nil
}

func NewRecoverySecret() ([recoverySecretSize]byte, error) {
	var secret [recoverySecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashRecoverySecret(secret [recoverySecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeRecoveryToken packs the challenge id and secret into one opaque base64url token.
func EncodeRecoveryToken(id ChallengeID, secret [recoverySecretSize]byte) string {
	var raw [recoveryTokenRawSize]byte
	copy(raw[:len(id)], id[:])
	copy(raw[len(id):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:])
}

func DecodeRecoveryToken(token string) (ChallengeID, [recoverySecretSize]byte, error) {
	var (
		id     ChallengeID
		secret [recoverySecretSize]byte
	)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return id, secret, err
	}
	if len(raw) != recoveryTokenRawSize {
		return id, secret, errors.New("invalid recovery token size")
	}

	copy(id[:], raw[:len(id)])
	copy(secret[:], raw[len(id):])

	return id, secret, nil
}

// NewVerificationCode returns a zero-padded numeric code of the given width drawn from
// crypto/rand, one digit at a time so every code is equally likely.
func NewVerificationCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid verification code digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	code := b.String()
	if len(code) != digits {
		return "", fmt.Errorf("invalid verification code length")
	}
	return code, nil
}
