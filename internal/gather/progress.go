package gather

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	emptyFile     = ".gather-empty"
	completedFile = ".gather-completed"
)

// progress remembers, per end date, which symbols returned no bars and
// whether the whole run completed, so a rerun on the same day is cheap.
type progress struct {
	mu    sync.Mutex
	dir   string
	empty map[string]struct{}
	file  *os.File
	w     *bufio.Writer
}

func openProgress(dir string) (*progress, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating progress dir: %w", err)
	}
	p := &progress{dir: dir, empty: make(map[string]struct{})}
	if err := p.open(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *progress) open() error {
	path := filepath.Join(p.dir, emptyFile)
	if data, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if sym := strings.TrimSpace(line); sym != "" {
				p.empty[sym] = struct{}{}
			}
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", emptyFile, err)
	}
	p.file = f
	p.w = bufio.NewWriter(f)
	return nil
}

func (p *progress) isEmpty(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.empty[symbol]
	return ok
}

func (p *progress) markEmpty(symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.empty[symbol]; ok {
		return nil
	}
	p.empty[symbol] = struct{}{}
	if _, err := p.w.WriteString(symbol + "\n"); err != nil {
		return fmt.Errorf("writing %s: %w", emptyFile, err)
	}
	return p.w.Flush()
}

func (p *progress) lastCompleted() string {
	data, err := os.ReadFile(filepath.Join(p.dir, completedFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (p *progress) markCompleted(date string) error {
	return os.WriteFile(filepath.Join(p.dir, completedFile), []byte(date), 0o644)
}

// reset forgets empty symbols from an earlier end date.
func (p *progress) reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.file.Close()
	p.empty = make(map[string]struct{})
	if err := os.Remove(filepath.Join(p.dir, emptyFile)); err != nil && !os.IsNotExist(err) {
		return err
	}
	f, err := os.OpenFile(filepath.Join(p.dir, emptyFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", emptyFile, err)
	}
	p.file = f
	p.w = bufio.NewWriter(f)
	return nil
}

func (p *progress) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.w.Flush(); err != nil {
		p.file.Close()
		return err
	}
	return p.file.Close()
}
