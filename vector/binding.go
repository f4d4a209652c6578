package vector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Binding records which embedding a collection was built with.
type Binding struct {
	Collection string `yaml:"collection"`
	Embedding  string `yaml:"embedding"`
	Dimensions int    `yaml:"dimensions,omitempty"`
}

// Check reports whether identity and dims are compatible with b. A zero
// dims is not checked.
func (b Binding) Check(identity string, dims int) error {
	if b.Embedding != identity {
		return fmt.Errorf("%w: collection %s bound to %s, configured %s",
			ErrEmbeddingMismatch, b.Collection, b.Embedding, identity)
	}

	if dims > 0 && b.Dimensions > 0 && b.Dimensions != dims {
		return fmt.Errorf("%w: collection %s expects %d dimensions, got %d",
			ErrEmbeddingMismatch, b.Collection, b.Dimensions, dims)
	}

	return nil
}

func bindingPath(cfg Config) string {
	if cfg.Path == "" {
		return ""
	}

	if cfg.Backend == BackendChromem && !cfg.Persistent {
		return ""
	}

	return filepath.Join(cfg.Path, cfg.Collection+".binding.yaml")
}

func loadBinding(path string) (Binding, error) {
	var b Binding

	f, err := os.Open(path)
	if err != nil {
		return b, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&b); err != nil {
		return b, fmt.Errorf("decode binding: %w", err)
	}

	return b, nil
}

func saveBinding(path string, b Binding) error {
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	bs, err := yaml.Marshal(&b)
	if err != nil {
		return err
	}

	return os.WriteFile(path, bs, 0o644)
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
