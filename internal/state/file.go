package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

const stateFileMode = 0o600

// FileStore persists one JSON file per symbol under a directory. Writes go
// through a temp file plus rename so a crash mid-write never leaves a
// half-written record behind.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "state directory must not be empty")
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(errors.ErrCodePersistenceFailure, err, "failed to create state directory %s", dir)
	}

	return &FileStore{dir: dir}, nil
}

// Load reads the state for a symbol. A missing file yields the flat default.
func (s *FileStore) Load(symbol string) (types.PositionState, error) {
	data, err := os.ReadFile(s.path(symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewPositionState(symbol), nil
		}

		return types.PositionState{}, errors.Wrapf(errors.ErrCodePersistenceFailure, err, "failed to read state for %s", symbol)
	}

	var loaded types.PositionState
	if err := json.Unmarshal(data, &loaded); err != nil {
		return types.PositionState{}, errors.Wrapf(errors.ErrCodeStateCorrupted, err, "state file for %s contains invalid JSON", symbol)
	}

	if err := loaded.Validate(); err != nil {
		return types.PositionState{}, errors.Wrapf(errors.ErrCodeStateCorrupted, err, "state file for %s violates invariants", symbol)
	}

	return loaded, nil
}

// Save overwrites the record for the state's symbol.
func (s *FileStore) Save(st types.PositionState) error {
	if err := st.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailure, "refusing to persist invalid state", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrapf(errors.ErrCodePersistenceFailure, err, "failed to marshal state for %s", st.Symbol)
	}

	target := s.path(st.Symbol)
	tmp := fmt.Sprintf("%s.tmp", target)

	if err := os.WriteFile(tmp, data, stateFileMode); err != nil {
		return errors.Wrapf(errors.ErrCodePersistenceFailure, err, "failed to write state for %s", st.Symbol)
	}

	if err := os.Rename(tmp, target); err != nil {
		return errors.Wrapf(errors.ErrCodePersistenceFailure, err, "failed to commit state for %s", st.Symbol)
	}

	return nil
}

func (s *FileStore) path(symbol string) string {
	// Symbols like "BRK/B" must not escape the state directory.
	safe := strings.ReplaceAll(symbol, string(os.PathSeparator), "_")

	return filepath.Join(s.dir, fmt.Sprintf("%s.json", safe))
}
