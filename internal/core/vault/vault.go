// Package vault appends public keys to a fixed set of authorized-keys
// files.
package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrInvalidVault is returned for names outside the vault map.
	ErrInvalidVault = errors.New("invalid vault selection")

	// ErrInvalidPayload is returned for empty or multi-line keys.
	ErrInvalidPayload = errors.New("invalid key payload")
)

// IOError wraps a filesystem failure while injecting a key.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("vault %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Map is the closed mapping from vault name to key file.
type Map map[string]string

// NewMap builds the standard two-vault map.
func NewMap(qdrive, qdriveAdmin string) Map {
	return Map{
		"qdrive":      qdrive,
		"qdriveadmin": qdriveAdmin,
	}
}

// Resolve looks up name case-insensitively.
func (m Map) Resolve(name string) (string, error) {
	path, ok := m[strings.ToLower(strings.TrimSpace(name))]
	if !ok || path == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidVault, name)
	}
	return path, nil
}

// Names lists the vault names in sorted order.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidatePayload trims key and rejects empty or multi-line payloads.
func ValidatePayload(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	if strings.ContainsAny(key, "\r\n") {
		return "", fmt.Errorf("%w: must be a single line", ErrInvalidPayload)
	}
	return key, nil
}

var locks sync.Map

func lockFor(path string) *sync.Mutex {
	mu, _ := locks.LoadOrStore(filepath.Clean(path), &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Inject appends key as a new line of the file behind name. The vault is
// resolved before the filesystem is touched.
func Inject(name, key string, vaults Map) error {
	path, err := vaults.Resolve(name)
	if err != nil {
		return err
	}
	key, err = ValidatePayload(key)
	if err != nil {
		return err
	}

	mu := lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return &IOError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	needsBreak, err := missingTrailingNewline(f)
	if err != nil {
		return &IOError{Op: "read", Path: path, Err: err}
	}

	line := key + "\n"
	if needsBreak {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &IOError{Op: "sync", Path: path, Err: err}
	}
	return nil
}

func missingTrailingNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return last[0] != '\n', nil
}
