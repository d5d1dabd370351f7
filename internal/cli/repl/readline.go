package repl

import (
	"errors"
	"io"

	"github.com/chzyer/readline"
)

// ErrInterrupt is returned by a LineReader when the user presses Ctrl-C.
var ErrInterrupt = errors.New("repl: interrupted")

// LineReader supplies input lines.
type LineReader interface {
	Readline() (string, error)
	ReadPassword(prompt string) (string, error)
	SetPrompt(prompt string)
	Close() error
}

// ReadlineConfig configures the terminal line reader.
type ReadlineConfig struct {
	Prompt      string
	HistoryFile string
	Completer   *Completer
	Stdin       io.ReadCloser
	Stdout      io.Writer
}

type readlineReader struct {
	inst *readline.Instance
}

// NewReadline creates a LineReader backed by a terminal with line
// editing, history and completion.
func NewReadline(cfg ReadlineConfig) (LineReader, error) {
	rc := &readline.Config{
		Prompt:            cfg.Prompt,
		HistoryFile:       cfg.HistoryFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             cfg.Stdin,
		Stdout:            cfg.Stdout,
	}
	if cfg.Completer != nil {
		rc.AutoComplete = cfg.Completer
	}

	inst, err := readline.NewEx(rc)
	if err != nil {
		return nil, err
	}
	return &readlineReader{inst: inst}, nil
}

func (r *readlineReader) Readline() (string, error) {
	line, err := r.inst.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return line, ErrInterrupt
	}
	return line, err
}

func (r *readlineReader) ReadPassword(prompt string) (string, error) {
	b, err := r.inst.ReadPassword(prompt)
	if errors.Is(err, readline.ErrInterrupt) {
		return "", ErrInterrupt
	}
	return string(b), err
}

func (r *readlineReader) SetPrompt(prompt string) {
	r.inst.SetPrompt(prompt)
}

func (r *readlineReader) Close() error {
	return r.inst.Close()
}
