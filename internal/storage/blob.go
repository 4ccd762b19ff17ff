package storage

import (
	"errors"
	"io"
)

var (
	ErrNotFound = errors.New("storage: blob not found")
	ErrBadKey   = errors.New("storage: invalid key")
)

type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error
}
