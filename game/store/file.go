package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/wricardo/connectfour/game/service"
)

const (
	passwordsFile = "passwords.json"
	statsFile     = "stats.json"
	friendsFile   = "friends.json"
)

// FileStore is a MemoryStore persisted as three JSON files
type FileStore struct {
	*MemoryStore
	dir string
}

// NewFileStore loads (or creates) the JSON files under dir
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "userdata"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fs := &FileStore{MemoryStore: NewMemoryStore(), dir: dir}
	if err := fs.load(); err != nil {
		return nil, err
	}
	fs.MemoryStore.save = fs.saveAll

	// Write the files immediately so the directory is always complete.
	fs.mu.Lock()
	err := fs.saveAll(fs.data)
	fs.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return fs, nil
}

// Dir returns the data directory
func (fs *FileStore) Dir() string {
	return fs.dir
}

func (fs *FileStore) load() error {
	data := fs.data

	if err := readJSON(filepath.Join(fs.dir, passwordsFile), &data.Passwords); err != nil {
		return err
	}
	if err := readJSON(filepath.Join(fs.dir, statsFile), &data.Stats); err != nil {
		return err
	}

	var friends map[string][]string
	if err := readJSON(filepath.Join(fs.dir, friendsFile), &friends); err != nil {
		return err
	}

	if data.Passwords == nil {
		data.Passwords = make(map[string]string)
	}
	if data.Stats == nil {
		data.Stats = make(map[string]service.Stats)
	}
	for user, list := range friends {
		set := make(map[string]struct{}, len(list))
		for _, f := range list {
			set[f] = struct{}{}
		}
		data.Friends[user] = set
	}

	// Every account gets stats and friend entries.
	for user := range data.Passwords {
		if _, ok := data.Stats[user]; !ok {
			data.Stats[user] = service.Stats{}
		}
		if _, ok := data.Friends[user]; !ok {
			data.Friends[user] = make(map[string]struct{})
		}
	}

	return nil
}

func (fs *FileStore) saveAll(data *userData) error {
	friends := make(map[string][]string, len(data.Friends))
	for user, set := range data.Friends {
		list := make([]string, 0, len(set))
		for f := range set {
			list = append(list, f)
		}
		sort.Strings(list)
		friends[user] = list
	}

	if err := writeJSON(filepath.Join(fs.dir, passwordsFile), data.Passwords); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(fs.dir, statsFile), data.Stats); err != nil {
		return err
	}
	return writeJSON(filepath.Join(fs.dir, friendsFile), friends)
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON replaces path via a temp file and rename
func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
