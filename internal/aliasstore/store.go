// Package aliasstore persists user aliases as a YAML file.
package aliasstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/moolen/gameterm/internal/config"
	"github.com/moolen/gameterm/internal/logging"
)

// FileStore implements commands.AliasStore on top of a YAML file that
// maps alias names to their token expansion:
//
//	hi: [say, hello]
//	w: [msg]
type FileStore struct {
	path   string
	logger *logging.Logger
}

// New returns a store for the file at path. The file is created on the
// first Save.
func New(path string) *FileStore {
	return &FileStore{
		path:   path,
		logger: logging.GetLogger("aliasstore"),
	}
}

// Path returns the file the store reads and writes.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads all aliases. A missing file holds no aliases.
func (s *FileStore) Load() (map[string][]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("no alias file at %s", s.path)
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read aliases from %q: %w", s.path, err)
	}

	aliases := map[string][]string{}
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("failed to parse aliases from %q: %w", s.path, err)
	}
	if aliases == nil {
		aliases = map[string][]string{}
	}

	s.logger.Debug("loaded %d aliases from %s", len(aliases), s.path)
	return aliases, nil
}

// Save replaces the file with aliases.
func (s *FileStore) Save(aliases map[string][]string) error {
	if err := config.WriteYAMLFile(s.path, aliases); err != nil {
		return fmt.Errorf("failed to save aliases: %w", err)
	}
	s.logger.Debug("saved %d aliases to %s", len(aliases), s.path)
	return nil
}
