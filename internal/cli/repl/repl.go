package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/yndnr/kvmesh-go/pkg/client"
)

// DefaultPrompt is shown before each input line.
const DefaultPrompt = "kvmesh> "

// KV is the subset of *client.Client the shell drives.
type KV interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	MultiPut(ctx context.Context, pairs map[string][]byte) error
	MultiGet(ctx context.Context, keys []string) ([]client.Entry, error)
	GetWhen(ctx context.Context, key, condKey string, condValue []byte) ([]byte, error)
}

type command struct {
	name  string
	usage string
	help  string
	// minArgs and maxArgs bound the argument count; maxArgs < 0 means no
	// upper bound.
	minArgs, maxArgs int
	run              func(r *REPL, ctx context.Context, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"put", "put <key> <value>", "store a value", 2, 2, (*REPL).put},
		{"get", "get <key>", "read a value", 1, 1, (*REPL).get},
		{"multiput", "multiput <key>=<value> ...", "store several values", 1, -1, (*REPL).multiPut},
		{"multiget", "multiget <key> ...", "read several values", 1, -1, (*REPL).multiGet},
		{"getwhen", "getwhen <key> <condKey> <condValue>", "read key once condKey holds condValue", 3, 3, (*REPL).getWhen},
		{"help", "help", "show this help", 0, 0, (*REPL).help},
		{"exit", "exit", "close the session", 0, 0, nil},
	}
}

// errExit stops the loop.
var errExit = errors.New("exit")

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	kv     KV
	input  LineReader
	output io.Writer
}

// New creates a REPL reading from input and writing results to output.
func New(kv KV, input LineReader, output io.Writer) *REPL {
	return &REPL{kv: kv, input: input, output: output}
}

// Run reads and executes lines until exit, end of input or ctx ends.
// Command failures are printed and do not stop the loop; a lost
// connection does.
func (r *REPL) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := r.input.Readline()
		if errors.Is(err, ErrInterrupt) {
			if strings.TrimSpace(line) == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		err = r.Execute(ctx, line)
		switch {
		case errors.Is(err, errExit):
			return nil
		case errors.Is(err, client.ErrClosed):
			return err
		case err != nil:
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
	}
}

// Execute runs a single input line.
func (r *REPL) Execute(ctx context.Context, line string) error {
	args, err := shellwords.Parse(strings.TrimSpace(line))
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	return r.ExecuteArgs(ctx, args)
}

// ExecuteArgs runs a command given as separate words, as in single-command
// mode.
func (r *REPL) ExecuteArgs(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}

	name, args := strings.ToLower(args[0]), args[1:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if len(args) < c.minArgs || (c.maxArgs >= 0 && len(args) > c.maxArgs) {
			return fmt.Errorf("usage: %s", c.usage)
		}
		if c.run == nil {
			return errExit
		}
		return c.run(r, ctx, args)
	}
	if name == "quit" {
		return errExit
	}
	return fmt.Errorf("unknown command %q (type help)", name)
}

func (r *REPL) put(ctx context.Context, args []string) error {
	if err := r.kv.Put(ctx, args[0], []byte(args[1])); err != nil {
		return err
	}
	fmt.Fprintln(r.output, "OK")
	return nil
}

func (r *REPL) get(ctx context.Context, args []string) error {
	v, err := r.kv.Get(ctx, args[0])
	if errors.Is(err, client.ErrNotFound) {
		fmt.Fprintln(r.output, "(not found)")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(r.output, "%q\n", v)
	return nil
}

func (r *REPL) multiPut(ctx context.Context, args []string) error {
	pairs := make(map[string][]byte, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid pair %q, want key=value", arg)
		}
		pairs[k] = []byte(v)
	}
	if err := r.kv.MultiPut(ctx, pairs); err != nil {
		return err
	}
	fmt.Fprintf(r.output, "OK (%d keys)\n", len(pairs))
	return nil
}

func (r *REPL) multiGet(ctx context.Context, args []string) error {
	entries, err := r.kv.MultiGet(ctx, args)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Found {
			fmt.Fprintf(r.output, "%s = %q\n", e.Key, e.Value)
		} else {
			fmt.Fprintf(r.output, "%s (not found)\n", e.Key)
		}
	}
	return nil
}

func (r *REPL) getWhen(ctx context.Context, args []string) error {
	v, err := r.kv.GetWhen(ctx, args[0], args[1], []byte(args[2]))
	switch {
	case errors.Is(err, client.ErrNotFound):
		fmt.Fprintln(r.output, "(not found)")
		return nil
	case errors.Is(err, client.ErrTimeout):
		fmt.Fprintln(r.output, "(timed out)")
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(r.output, "%q\n", v)
	return nil
}

func (r *REPL) help(context.Context, []string) error {
	for _, c := range commands {
		fmt.Fprintf(r.output, "  %-40s %s\n", c.usage, c.help)
	}
	return nil
}
