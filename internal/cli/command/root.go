package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/cli/repl"
	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/kvmesh-go/pkg/client"
	"github.com/yndnr/kvmesh-go/pkg/wire"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:      "kvmesh-cli",
		Usage:     "kvmesh interactive client",
		UsageText: "kvmesh-cli [global options] [command [args...]]",
		Version:   buildinfo.String(),
		Flags:     globalFlags(),
		Action:    runAction,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "kvmesh server address",
			EnvVars: []string{"KVMESH_SERVER"},
			Value:   "127.0.0.1:11111",
		},
		&cli.StringFlag{
			Name:    "user",
			Aliases: []string{"u"},
			Usage:   "username (prompted when empty)",
			EnvVars: []string{"KVMESH_USER"},
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "password (prompted when empty)",
			EnvVars: []string{"KVMESH_PASSWORD"},
		},
		&cli.BoolFlag{
			Name:  "register",
			Usage: "register the user instead of logging in",
		},
		&cli.DurationFlag{
			Name:  "connect-timeout",
			Usage: "time allowed for connecting and being admitted",
			Value: 30 * time.Second,
		},
		&cli.StringFlag{
			Name:  "history-file",
			Usage: "shell history file",
			Value: defaultHistoryFile(),
		},
	}
}

// GlobalFlags holds the parsed global flags.
type GlobalFlags struct {
	Server         string
	User           string
	Password       string
	Register       bool
	ConnectTimeout time.Duration
	HistoryFile    string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:         c.String("server"),
		User:           c.String("user"),
		Password:       c.String("password"),
		Register:       c.Bool("register"),
		ConnectTimeout: c.Duration("connect-timeout"),
		HistoryFile:    c.String("history-file"),
	}
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kvmesh_history")
}

func runAction(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	ctx := c.Context
	out := c.App.Writer

	lr, err := repl.NewReadline(repl.ReadlineConfig{
		Prompt:      repl.DefaultPrompt,
		HistoryFile: flags.HistoryFile,
		Completer:   repl.NewCompleter(),
	})
	if err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer lr.Close()

	dialCtx, cancel := context.WithTimeout(ctx, flags.ConnectTimeout)
	kv, err := client.Dial(dialCtx, flags.Server)
	cancel()
	if err != nil {
		return fmt.Errorf("connect %s: %w", flags.Server, err)
	}
	defer kv.Close()

	if err := Authenticate(ctx, kv, lr, out, flags); err != nil {
		return err
	}

	shell := repl.New(kv, lr, out)
	if c.Args().Present() {
		return shell.ExecuteArgs(ctx, c.Args().Slice())
	}

	fmt.Fprintf(out, "Connected to %s as %s. Type help for commands.\n", flags.Server, kv.Username())
	return shell.Run(ctx)
}

// Authenticator is the part of *client.Client used to sign in.
type Authenticator interface {
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, username, password string) error
}

// Authenticate signs in using the flags, prompting on in for anything
// missing. After a retryable login failure it asks again.
func Authenticate(ctx context.Context, a Authenticator, in repl.LineReader, out io.Writer, flags *GlobalFlags) error {
	register := flags.Register
	username, password := flags.User, flags.Password
	interactive := username == "" || password == ""

	if interactive && !register && username == "" {
		choice, err := ask(in, wire.PromptMenu+": ")
		if err != nil {
			return err
		}
		register = choice == wire.ChoiceRegister
	}

	for {
		var err error
		if username == "" {
			if username, err = ask(in, "Username: "); err != nil {
				return err
			}
		}
		if password == "" {
			if password, err = in.ReadPassword("Password: "); err != nil {
				return err
			}
		}

		if register {
			err = a.Register(ctx, username, password)
		} else {
			err = a.Login(ctx, username, password)
		}
		if err == nil {
			return nil
		}

		var ae *client.AuthError
		if !interactive || !errors.As(err, &ae) || !ae.Retryable {
			return err
		}
		fmt.Fprintln(out, ae.Reason)

		choice, rerr := ask(in, "> ")
		if rerr != nil {
			return rerr
		}
		switch {
		case choice == wire.ChoiceRetry:
		case choice == wire.ChoiceRegister && ae.Reason == wire.PromptUnknownUser:
			register = true
		default:
			return err
		}
		username, password = "", ""
	}
}

func ask(in repl.LineReader, prompt string) (string, error) {
	in.SetPrompt(prompt)
	defer in.SetPrompt(repl.DefaultPrompt)
	return in.Readline()
}
