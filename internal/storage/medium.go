package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Medium is the removable storage a node logs to
type Medium interface {
	Exists(name string) (bool, error)
	Overwrite(name, content string) error
	AppendLine(name, line string) error
}

// Dir is a Medium backed by a directory on the local filesystem
type Dir struct {
	root string
	mu   sync.Mutex
}

// NewDir creates the directory if needed and returns a Medium rooted there
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the directory path
func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(d.root, name), nil
}

// Exists reports whether a file is present. Errors other than not-exist are returned.
func (d *Dir) Exists(name string) (bool, error) {
	p, err := d.path(name)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", name, err)
}

// Overwrite truncates or creates the file and writes content
func (d *Dir) Overwrite(name, content string) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to overwrite %s: %w", name, err)
	}
	return nil
}

// AppendLine appends line followed by a newline, creating the file if needed.
// Each call opens, writes and closes the file so a completed call survives
// the process.
func (d *Dir) AppendLine(name, line string) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	file, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}

	if _, err := file.WriteString(line + "\n"); err != nil {
		file.Close()
		return fmt.Errorf("failed to append to %s: %w", name, err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	return nil
}

// Remove deletes a file. A missing file is not an error.
func (d *Dir) Remove(name string) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

// Memory is an in-process Medium, used by the simulator and tests
type Memory struct {
	files map[string]string
	mu    sync.RWMutex

	// Fail, when set, is returned by every operation
	Fail error
}

// NewMemory creates an empty in-memory medium
func NewMemory() *Memory {
	return &Memory{files: make(map[string]string)}
}

func (m *Memory) Exists(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Fail != nil {
		return false, m.Fail
	}
	_, ok := m.files[name]
	return ok, nil
}

func (m *Memory) Overwrite(name, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.files[name] = content
	return nil
}

func (m *Memory) AppendLine(name, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.files[name] += line + "\n"
	return nil
}

// Read returns a file's content and whether it exists
func (m *Memory) Read(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.files[name]
	return content, ok
}

// Names returns the stored file names in sorted order
func (m *Memory) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
