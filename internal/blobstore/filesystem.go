package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type FileSystem struct {
	root string
}

// NewFileSystem создаёт корневой каталог, если его нет.
func NewFileSystem(root string) (*FileSystem, error) {
	const op = "blobstore.NewFileSystem"
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &FileSystem{root: root}, nil
}

func (f *FileSystem) path(name string) (string, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, filepath.FromSlash(cleaned)), nil
}

// Read читает файл целиком.
func (f *FileSystem) Read(ctx context.Context, name string) ([]byte, error) {
	const op = "blobstore.FileSystem.Read"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	p, err := f.path(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

// Write записывает файл через временный файл и rename, чтобы читатели
// не видели частично записанное содержимое.
func (f *FileSystem) Write(ctx context.Context, name string, data []byte) error {
	const op = "blobstore.FileSystem.Write"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	p, err := f.path(name)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete удаляет файл; отсутствие файла не считается ошибкой.
func (f *FileSystem) Delete(ctx context.Context, name string) error {
	const op = "blobstore.FileSystem.Delete"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	p, err := f.path(name)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
