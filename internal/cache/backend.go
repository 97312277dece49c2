package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Backend is where the cache blob produced by Marshal lives: a local file by
// default, generalized as an interface so a fleet of collectors can
// optionally mirror through S3 without changing the blob format.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, blob []byte) error
}

// FileBackend is the default Backend: a single file under OutputDirectory.
type FileBackend struct {
	Path string
}

// Load reads the cache file; a missing file is not an error (caller falls
// back to an empty cache).
func (b FileBackend) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", b.Path, err)
	}
	return data, nil
}

// Save writes the cache file, creating parent directories if needed.
func (b FileBackend) Save(_ context.Context, blob []byte) error {
	if err := os.MkdirAll(filepath.Dir(b.Path), 0o755); err != nil {
		return fmt.Errorf("cache: mkdir for %s: %w", b.Path, err)
	}
	if err := os.WriteFile(b.Path, blob, 0o600); err != nil {
		return fmt.Errorf("cache: write %s: %w", b.Path, err)
	}
	return nil
}

// FileName resolves the cache file path: OutputDirectory /
// <RealDNSName or MachineID>.cache.
func FileName(outputDir, realDNSName string) string {
	base := realDNSName
	if base == "" {
		base = MachineID()
	}
	return filepath.Join(outputDir, base+".cache")
}

// Load populates a fresh Cache from backend, falling back to empty on any
// read or decode error. invalidate forces the empty path regardless of
// what's on disk, covering --RebuildCache.
func Load(ctx context.Context, backend Backend, invalidate bool) (*Cache, error) {
	if invalidate {
		return New(), nil
	}
	blob, err := backend.Load(ctx)
	if err != nil || blob == nil {
		return New(), err
	}
	c := New()
	if err := c.Unmarshal(blob); err != nil {
		return New(), nil //nolint:nilerr // decode failure degrades to empty cache, not a run fault
	}
	return c, nil
}

// Save persists c through backend unless memOnly is set (--MemCache).
func Save(ctx context.Context, backend Backend, c *Cache, memOnly bool) error {
	if memOnly {
		return nil
	}
	blob, err := c.Marshal()
	if err != nil {
		return err
	}
	return backend.Save(ctx, blob)
}
