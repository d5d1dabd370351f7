// Package userlog provides the append-only user registration log.
package userlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
)

// File permissions.
const (
	DefaultFilePerm = 0600
	DefaultDirPerm  = 0750
)

// maxLineLen bounds a single record line.
const maxLineLen = 1 << 20

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("userlog: closed")

// Log is an open user log.
type Log struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	closed bool
	logger *slog.Logger
}

// Open opens (creating if needed) the log at path and returns it together
// with every record it already holds, in file order.
func Open(path string, logger *slog.Logger) (*Log, []domain.UserAccount, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("userlog: path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return nil, nil, fmt.Errorf("userlog: create dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, DefaultFilePerm)
	if err != nil {
		return nil, nil, fmt.Errorf("userlog: open %s: %w", path, err)
	}

	accounts, err := ReadAll(f, logger)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("userlog: read %s: %w", path, err)
	}

	if err := terminateLastLine(f); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("userlog: repair %s: %w", path, err)
	}

	l := &Log{
		file:   f,
		path:   path,
		logger: logger,
	}

	logger.Info("user log opened", "path", path, "records", len(accounts))
	return l, accounts, nil
}

// ReadAll parses records from r.
func ReadAll(r io.Reader, logger *slog.Logger) ([]domain.UserAccount, error) {
	if logger == nil {
		logger = slog.Default()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLen)

	var accounts []domain.UserAccount
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		acc, ok := parseLine(line)
		if !ok {
			logger.Warn("skipping malformed user record", "line", lineNo)
			continue
		}
		accounts = append(accounts, acc)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func parseLine(line string) (domain.UserAccount, bool) {
	username, password, found := strings.Cut(line, ",")
	if !found || username == "" {
		return domain.UserAccount{}, false
	}
	return domain.UserAccount{Username: username, Password: password}, true
}

// FormatLine renders the log line for acc, including the trailing newline.
func FormatLine(acc domain.UserAccount) string {
	return acc.Username + "," + acc.Password + "\n"
}

// terminateLastLine appends a newline when a previous run died in the
// middle of a record, so the next append starts on a fresh line.
func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := f.Write([]byte{'\n'}); err != nil {
		return err
	}
	return f.Sync()
}

// Append writes acc as one line and syncs it to disk.
func (l *Log) Append(acc domain.UserAccount) error {
	if err := acc.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	if _, err := l.file.WriteString(FormatLine(acc)); err != nil {
		return fmt.Errorf("userlog: write: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("userlog: sync: %w", err)
	}
	return nil
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Close closes the log file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}
