// Package blobstore хранит защищённые файлы в зашифрованном виде.
//
// Store шифрует содержимое XChaCha20-Poly1305 и передаёт байты в Backend
// (локальная файловая система или S3-совместимое хранилище). Имена файлов
// не шифруются.
package blobstore

import (
	"context"
	"errors"
	"path"
	"strings"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrInvalidName = errors.New("invalid blob name")
)

type Backend interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// cleanName проверяет, что имя относительное и уже нормализовано.
func cleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if name == "" || strings.ContainsRune(name, 0) || strings.HasPrefix(name, "/") {
		return "", ErrInvalidName
	}
	cleaned := path.Clean(name)
	if cleaned != name || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidName
	}
	return cleaned, nil
}
