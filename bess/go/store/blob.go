package store

import (
	"os"
	"path/filepath"

	"github.com/witto13/BESS-Crawler/go/skerr"
)

// BlobStore keeps fetched documents on disk, content-addressed by their
// sha256 and sharded by the first two hex chars.
type BlobStore struct {
	base string
}

// NewBlobStore returns a BlobStore rooted at base.
func NewBlobStore(base string) *BlobStore {
	return &BlobStore{base: base}
}

// Path returns the storage path for a digest without writing anything.
func (b *BlobStore) Path(sha256 string) string {
	return filepath.Join(b.base, "docs", sha256[:2], sha256+".bin")
}

// Write stores the blob and returns its path. Writing an existing digest is
// a no-op.
func (b *BlobStore) Write(sha256 string, data []byte) (string, error) {
	p := b.Path(sha256)
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", skerr.Wrap(err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", skerr.Wrap(err)
	}
	return p, nil
}

// Read loads a blob by digest.
func (b *BlobStore) Read(sha256 string) ([]byte, error) {
	data, err := os.ReadFile(b.Path(sha256))
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return data, nil
}
