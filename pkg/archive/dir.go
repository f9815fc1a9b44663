package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/json"
)

// DirStore copies objects into a local directory and writes each object's
// metadata next to it as <name>.meta.json
type DirStore struct {
	root string
}

// NewDirStore creates root if needed
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create archive directory").WithDetail("dir", root)
	}
	return &DirStore{root: root}, nil
}

func (s *DirStore) Put(ctx context.Context, key string, src *os.File, info Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	meta, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(dst+".meta.json", meta, 0o644)
}

func (s *DirStore) Close() error { return nil }
