package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore maps file://bucket/key to <root>/bucket/key on disk.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) path(ref Ref) (string, error) {
	p := filepath.Join(s.root, ref.Bucket, filepath.FromSlash(ref.Key))
	bucketDir := filepath.Join(s.root, ref.Bucket)
	if p != bucketDir && !strings.HasPrefix(p, bucketDir+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact: %s escapes bucket", ref)
	}
	return p, nil
}

func (s *LocalStore) Get(_ context.Context, ref Ref) ([]byte, error) {
	p, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return b, nil
}

func (s *LocalStore) Put(_ context.Context, ref Ref, data []byte) error {
	p, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", ref, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", ref, err)
	}
	return nil
}

func (s *LocalStore) List(ctx context.Context, prefix Ref) ([]Ref, error) {
	bucketDir := filepath.Join(s.root, prefix.Bucket)
	var out []Ref
	err := filepath.WalkDir(bucketDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(bucketDir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if hasPrefix(key, prefix.Key) {
			out = append(out, Ref{Scheme: prefix.Scheme, Bucket: prefix.Bucket, Key: key})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sortRefs(out)
	return out, nil
}
