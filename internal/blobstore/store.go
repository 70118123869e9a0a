package blobstore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize длина ключа шифрования в байтах.
const KeySize = chacha20poly1305.KeySize

// Store шифрует содержимое перед записью в Backend.
// Формат хранения: nonce (24 байта) || ciphertext.
type Store struct {
	backend   Backend
	aead      cipher.AEAD
	log       *slog.Logger
	fallbacks prometheus.Counter
}

// NewStore создаёт Store. fallbacks может быть nil.
func NewStore(backend Backend, key []byte, log *slog.Logger, fallbacks prometheus.Counter) (*Store, error) {
	const op = "blobstore.NewStore"
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{
		backend:   backend,
		aead:      aead,
		log:       log,
		fallbacks: fallbacks,
	}, nil
}

// Put шифрует plaintext и сохраняет под именем name.
func (s *Store) Put(ctx context.Context, name string, plaintext []byte) error {
	const op = "blobstore.Put"

	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	sealed := s.aead.Seal(nonce, nonce, plaintext, nil)

	if err := s.backend.Write(ctx, name, sealed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get читает и расшифровывает файл.
//
// Файлы, записанные до включения шифрования, хранятся открытым текстом:
// если расшифровка не удалась, возвращаются сырые байты.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	const op = "blobstore.Get"

	raw, err := s.backend.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plaintext, err := s.decrypt(raw)
	if err != nil {
		s.log.Warn("blob decryption failed, serving stored bytes",
			slog.String("op", op),
			slog.String("blob", name),
			slog.String("reason", err.Error()),
		)
		if s.fallbacks != nil {
			s.fallbacks.Inc()
		}
		return raw, nil
	}
	return plaintext, nil
}

// Delete удаляет файл.
func (s *Store) Delete(ctx context.Context, name string) error {
	const op = "blobstore.Delete"
	if err := s.backend.Delete(ctx, name); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) decrypt(raw []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(raw) < ns+s.aead.Overhead() {
		return nil, fmt.Errorf("ciphertext too short: %d bytes", len(raw))
	}
	return s.aead.Open(nil, raw[:ns], raw[ns:], nil)
}
