package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const recoveryRecordVersionV1 = 1

var (
	ErrRecoveryNotFound         = errors.New("recovery record not found")
	ErrRecoverySecretMismatch   = errors.New("recovery secret mismatch")
	ErrRecoveryAttemptsExceeded = errors.New("recovery attempts exceeded")
	ErrRecoveryRedisUnavailable = errors.New("recovery redis unavailable")
)

// RecoveryRecord is a pending password recovery challenge. Only the SHA-256 of the secret
// is stored.
type RecoveryRecord struct {
	Email      string
	SecretHash [32]byte
	ExpiresAt  int64
	Attempts   uint16
}

// RecoveryStore keeps recovery challenges in Redis under prefix:<challenge id>.
type RecoveryStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRecoveryStore(redisClient redis.UniversalClient, prefix string, now func() time.Time) *RecoveryStore {
	if prefix == "" {
		prefix = "fpr"
	}
	if now == nil {
		now = time.Now
	}
	return &RecoveryStore{
		redis:  redisClient,
		prefix: prefix,
		now:    now,
	}
}

func (s *RecoveryStore) key(challengeID string) string {
	return s.prefix + ":" + challengeID
}

func (s *RecoveryStore) Save(ctx context.Context, challengeID string, record *RecoveryRecord, ttl time.Duration) error {
	encoded, err := encodeRecoveryRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(challengeID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRecoveryRedisUnavailable, err)
	}

	return nil
}

// Consume deletes and returns the record when providedHash matches. A mismatch counts an
// attempt; reaching maxAttempts deletes the record.
func (s *RecoveryStore) Consume(
	ctx context.Context,
	challengeID string,
	providedHash [32]byte,
	maxAttempts int,
) (*RecoveryRecord, error) {
	const maxRetries = 4
	key := s.key(challengeID)

	for i := 0; i < maxRetries; i++ {
		var matched *RecoveryRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeRecoveryRecord(data)
			if err != nil {
				return err
			}

			now := s.now()
			if now.Unix() > record.ExpiresAt {
				if err := deleteInTx(ctx, tx, key); err != nil {
					return err
				}
				return ErrRecoveryNotFound
			}

			if subtle.ConstantTimeCompare(record.SecretHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if int(record.Attempts) >= maxAttempts {
					if err := deleteInTx(ctx, tx, key); err != nil {
						return err
					}
					return ErrRecoveryAttemptsExceeded
				}

				ttl := time.Unix(record.ExpiresAt, 0).Sub(now)
				if ttl <= 0 {
					if err := deleteInTx(ctx, tx, key); err != nil {
						return err
					}
					return ErrRecoveryNotFound
				}

				updated, err := encodeRecoveryRecord(record)
				if err != nil {
					return err
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrRecoverySecretMismatch
			}

			if err := deleteInTx(ctx, tx, key); err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrRecoveryNotFound
			case errors.Is(err, ErrRecoveryNotFound), errors.Is(err, ErrRecoverySecretMismatch), errors.Is(err, ErrRecoveryAttemptsExceeded):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrRecoveryRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, ErrRecoveryNotFound
}

func deleteInTx(ctx context.Context, tx *redis.Tx, key string) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		return nil
	})
	return err
}

func encodeRecoveryRecord(record *RecoveryRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recoveryRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Email) > 65535 {
		return nil, errors.New("recovery record email too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Email))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Email)
	buf.Write(record.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeRecoveryRecord(data []byte) (*RecoveryRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recoveryRecordVersionV1 {
		return nil, errors.New("invalid recovery record version")
	}

	record := &RecoveryRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var emailLen uint16
	if err := binary.Read(reader, binary.BigEndian, &emailLen); err != nil {
		return nil, err
	}

	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return nil, err
	}
	record.Email = string(email)

	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
