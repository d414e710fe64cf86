package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// FlatStore is a flat namespace of named byte slots
type FlatStore interface {
	Write(name string, data []byte) error
	Read(name string) ([]byte, error)
}

// AferoStore keeps slots as files in a single directory of an afero filesystem
type AferoStore struct {
	fs   afero.Fs
	root string
}

// NewAferoStore creates the root directory if needed
func NewAferoStore(fs afero.Fs, root string) (*AferoStore, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
	}
	return &AferoStore{fs: fs, root: root}, nil
}

// NewOSStore opens a store on the host filesystem
func NewOSStore(root string) (*AferoStore, error) {
	return NewAferoStore(afero.NewOsFs(), root)
}

// slotPath maps a slot name onto the root; the namespace is flat so any
// directory part of the name is dropped.
func (s *AferoStore) slotPath(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return "", fmt.Errorf("invalid slot name %q", name)
	}
	return path.Join(s.root, base), nil
}

// Write replaces the slot. Data goes to a temporary file first and is renamed
// over the slot, so readers see either the old or the new content.
func (s *AferoStore) Write(name string, data []byte) error {
	p, err := s.slotPath(name)
	if err != nil {
		return err
	}

	tmp := p + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, p); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", p, err)
	}
	return nil
}

// Read returns the content of the slot
func (s *AferoStore) Read(name string) ([]byte, error) {
	p, err := s.slotPath(name)
	if err != nil {
		return nil, err
	}
	return afero.ReadFile(s.fs, p)
}
