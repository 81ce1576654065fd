// server/store/filestore/filestore.go
package filestore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arbornote/arbor/domain"
	"github.com/arbornote/arbor/store"
)

// Store keeps each object as a file under a root directory: YAML frontmatter
// for metadata and content type, then the raw content. Writes go through a
// temp file and rename so an object is replaced whole or not at all.
type Store struct {
	root string
}

// New opens a file-backed object store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Store{root: dir}, nil
}

type frontmatter struct {
	Meta        map[string]string `yaml:"meta"`
	ContentType string            `yaml:"contentType,omitempty"`
}

func (s *Store) filePath(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	return filepath.Join(s.root, clean+".md"), nil
}

func (s *Store) Has(ctx context.Context, path string) (bool, error) {
	fp, err := s.filePath(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fp); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) Get(ctx context.Context, path string) (*store.Object, error) {
	fp, err := s.filePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound.New("object %q", path)
		}
		return nil, err
	}
	return parseObject(data)
}

func (s *Store) GetMeta(ctx context.Context, path string) (map[string]string, error) {
	obj, err := s.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return obj.Meta, nil
}

func (s *Store) Put(ctx context.Context, path string, content []byte, opts store.PutOptions) error {
	fp, err := s.filePath(path)
	if err != nil {
		return err
	}
	return writeObject(fp, store.Object{
		Content:     content,
		Meta:        opts.Meta,
		ContentType: opts.ContentType,
	})
}

func (s *Store) Copy(ctx context.Context, fromPath, toPath string, opts store.PutOptions) error {
	src, err := s.Get(ctx, fromPath)
	if err != nil {
		return err
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = src.ContentType
	}
	fp, err := s.filePath(toPath)
	if err != nil {
		return err
	}
	return writeObject(fp, store.Object{
		Content:     src.Content,
		Meta:        opts.Meta,
		ContentType: contentType,
	})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	fp, err := s.filePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// parseObject splits frontmatter from content.
func parseObject(data []byte) (*store.Object, error) {
	parts := bytes.SplitN(data, []byte("---\n"), 3)
	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid frontmatter format")
	}
	var fm frontmatter
	if err := yaml.Unmarshal(parts[1], &fm); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	content := bytes.TrimPrefix(parts[2], []byte("\n"))
	return &store.Object{
		Content:     content,
		Meta:        fm.Meta,
		ContentType: fm.ContentType,
	}, nil
}

func writeObject(fp string, obj store.Object) error {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(frontmatter{Meta: obj.Meta, ContentType: obj.ContentType}); err != nil {
		return fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	encoder.Close()
	buf.WriteString("---\n\n")
	buf.Write(obj.Content)

	if err := os.MkdirAll(filepath.Dir(fp), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(fp), ".obj-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), fp)
}
