package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, err
	}
	return &LocalStorage{basePath: basePath}, nil
}

// getPathFromRef fans blobs out over two directory levels so a single
// directory never accumulates every blob.
func (ls *LocalStorage) getPathFromRef(ref string) string {
	if len(ref) < 4 {
		return filepath.Join(ls.basePath, ref)
	}
	return filepath.Join(ls.basePath, ref[:2], ref[2:4], ref)
}

func (ls *LocalStorage) Save(_ context.Context, ref string, data io.Reader) error {
	filePath := ls.getPathFromRef(ref)

	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, data)
	return err
}

func (ls *LocalStorage) Get(_ context.Context, ref string) (io.ReadCloser, error) {
	filePath := ls.getPathFromRef(ref)

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s not found: %w", ref, err)
		}
		return nil, err
	}

	return file, nil
}

func (ls *LocalStorage) Delete(_ context.Context, ref string) error {
	err := os.Remove(ls.getPathFromRef(ref))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
