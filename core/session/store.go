package session

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/masomo-portal/core/user"
)

type Tokens struct {
	Access  string `yaml:"access" json:"access"`
	Refresh string `yaml:"refresh" json:"refresh"`
}

func (t Tokens) IsZero() bool { return t.Access == "" && t.Refresh == "" }

// State is what a Session persists across runs.
type State struct {
	Tokens Tokens     `yaml:"tokens"`
	User   *user.User `yaml:"user,omitempty"`
}

// Store persists the session State.
// Load returns a zero State when nothing was saved.
type Store interface {
	Load() (State, error)
	Save(state State) error
	Clear() error
}

// FileStore keeps the session in a YAML file readable by the current user only.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Path() string { return fs.path }

func (fs *FileStore) Load() (State, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var state State
	data, err := ioutil.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, errors.Wrap(err, "reading session file")
	}
	if err := yaml.Unmarshal(data, &state); err != nil {
		return State{}, errors.Wrap(err, "decoding session file")
	}
	return state, nil
}

// Save replaces the session file atomically.
func (fs *FileStore) Save(state State) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := yaml.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "creating session dir")
	}
	tmp, err := ioutil.TempFile(dir, ".session-*")
	if err != nil {
		return errors.Wrap(err, "creating session file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing session file")
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing session file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "writing session file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), fs.path), "saving session file")
}

func (fs *FileStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing session file")
	}
	return nil
}

// MemoryStore keeps the session in memory.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore { return new(MemoryStore) }

func (ms *MemoryStore) Load() (State, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.state, nil
}

func (ms *MemoryStore) Save(state State) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.state = state
	return nil
}

func (ms *MemoryStore) Clear() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.state = State{}
	return nil
}
