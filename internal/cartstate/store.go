package cartstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/wichananm65/secondhand-market/internal/cart"
)

// FileStore persists the guest cart as a JSON document on disk.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type storedCart struct {
	Items []cart.Line `json:"items"`
}

func (s *FileStore) Load() ([]cart.Line, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart file: %w", err)
	}
	var doc storedCart
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode cart file: %w", err)
	}
	return doc.Items, nil
}

// Save replaces the file atomically.
func (s *FileStore) Save(lines []cart.Line) error {
	if lines == nil {
		lines = []cart.Line{}
	}
	b, err := json.Marshal(storedCart{Items: lines})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cart dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cart-*.json")
	if err != nil {
		return fmt.Errorf("create cart file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write cart file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
