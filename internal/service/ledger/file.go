package ledger

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
)

var _ Ledger = (*FileLedger)(nil)

type FileLedger struct {
	path string
	mu   sync.Mutex
}

func FromFile(path string) *FileLedger {
	return &FileLedger{path: path}
}

func (l *FileLedger) Append(ctx context.Context, e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &WriteError{Path: l.path, Err: err}
	}
	if _, err = f.WriteString(e.Line() + "\n"); err != nil {
		_ = f.Close()
		return &WriteError{Path: l.path, Err: err}
	}
	if err = f.Close(); err != nil {
		return &WriteError{Path: l.path, Err: err}
	}
	return nil
}

func (l *FileLedger) DrainForDigest(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", ErrEmpty
	}
	return string(data), nil
}

func (l *FileLedger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := os.Truncate(l.path, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (l *FileLedger) Len(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) > 0 {
			n++
		}
	}
	return n, sc.Err()
}
