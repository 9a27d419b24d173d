package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/pkg/browser"
	ucli "github.com/urfave/cli/v3"

	"cargo-kelvin/internal/config"
	"cargo-kelvin/internal/errdefs"
	"cargo-kelvin/internal/kelvin"
)

const (
	ExitSuccess           = 0
	ExitUploadFailure     = 1
	ExitInvalidInvocation = 2
	ExitWorkspaceError    = 3
	ExitInternalError     = 4
)

// Env is everything a run takes from the process besides its arguments and
// environment variables.
type Env struct {
	Stdout      io.Writer
	Stderr      io.Writer
	WorkDir     string
	OpenBrowser func(url string) error
	HTTPClient  *http.Client
}

func (e Env) withDefaults() Env {
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	if e.OpenBrowser == nil {
		e.OpenBrowser = browser.OpenURL
	}
	return e
}

// Run executes one invocation and returns the process exit status. args
// excludes argv[0]. A leading "kelvin" is dropped, which is how cargo calls
// external subcommands.
func Run(ctx context.Context, args []string, env Env) int {
	env = env.withDefaults()
	if len(args) > 0 && args[0] == "kelvin" {
		args = args[1:]
	}

	cmd := newCommand(env)
	err := cmd.Run(ctx, append([]string{cmd.Name}, args...))
	if err != nil {
		fmt.Fprintln(env.Stderr, Describe(err))
	}
	return ExitCode(err)
}

func newCommand(env Env) *ucli.Command {
	return &ucli.Command{
		Name:            "cargo-kelvin",
		Usage:           "Submit Cargo projects to Kelvin",
		Version:         kelvin.Version,
		Writer:          env.Stdout,
		ErrWriter:       env.Stderr,
		HideHelpCommand: true,
		ExitErrHandler:  func(context.Context, *ucli.Command, error) {},
		Action: func(context.Context, *ucli.Command) error {
			return errdefs.Config("", "missing subcommand, try: cargo kelvin submit <assignment-id>")
		},
		Commands: []*ucli.Command{
			submitCommand(env),
		},
	}
}

func submitCommand(env Env) *ucli.Command {
	return &ucli.Command{
		Name:      "submit",
		Usage:     "Submit the current directory to Kelvin",
		ArgsUsage: "<assignment-id>",
		Description: "The assignment id is part of the task URL, " +
			"i.e. https://kelvin.cs.vsb.cz/task/<assignment-id>/<your-login>.",
		Flags: []ucli.Flag{
			&ucli.StringFlag{
				Name:  "token",
				Usage: "API token for submitting to Kelvin, generate it at https://kelvin.cs.vsb.cz/api_token (default: $KELVIN_API_TOKEN)",
			},
			&ucli.StringFlag{
				Name:  "dir",
				Usage: "directory inside the project to submit (default: current directory)",
			},
			&ucli.StringFlag{
				Name:  "kelvin-url",
				Usage: "Kelvin base URL (default: $KELVIN_URL or " + config.DefaultKelvinURL + ")",
			},
			&ucli.BoolFlag{
				Name:  "no-open",
				Usage: "do not open the browser after uploading the submit",
			},
			&ucli.StringFlag{
				Name:    "config",
				Usage:   "optional configuration file (yaml, toml, json or .env)",
				Sources: ucli.EnvVars("KELVIN_CONFIG"),
			},
			&ucli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Action: func(ctx context.Context, cmd *ucli.Command) error {
			if cmd.Args().Len() > 1 {
				return errdefs.Config("submit", "unexpected arguments: %v", cmd.Args().Tail())
			}
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return errdefs.Config("load", "%v", err)
			}
			run, err := config.Resolve(*cfg, config.Overrides{
				AssignmentID: cmd.Args().First(),
				Token:        cmd.String("token"),
				URL:          cmd.String("kelvin-url"),
				Dir:          cmd.String("dir"),
				LogLevel:     cmd.String("log-level"),
			}, env.WorkDir)
			if err != nil {
				return err
			}
			return Submit(ctx, run, !cmd.Bool("no-open"), env)
		},
	}
}

// ExitCode maps a pipeline error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch errdefs.KindOf(err) {
	case errdefs.ErrConfig:
		return ExitInvalidInvocation
	case errdefs.ErrScan, errdefs.ErrArchive:
		return ExitWorkspaceError
	case errdefs.ErrAuth, errdefs.ErrNotFound, errdefs.ErrServer, errdefs.ErrTransport:
		return ExitUploadFailure
	case nil:
		// flag parsing errors from urfave/cli
		return ExitInvalidInvocation
	default:
		return ExitInternalError
	}
}

// Describe renders an error as a single line naming the failed stage.
func Describe(err error) string {
	var e *errdefs.Error
	if !errors.As(err, &e) {
		return "invalid invocation: " + err.Error()
	}

	detail := ""
	if e.Err != nil {
		detail = e.Err.Error()
		if e.Op != "" {
			detail = e.Op + ": " + detail
		}
	}
	withDetail := func(prefix string) string {
		if detail == "" {
			return prefix
		}
		return prefix + ": " + detail
	}

	switch e.Kind {
	case errdefs.ErrConfig:
		if e.Err == nil {
			return "configuration error"
		}
		return "configuration error: " + e.Err.Error()
	case errdefs.ErrScan:
		return withDetail("scan failed")
	case errdefs.ErrArchive:
		return withDetail("packaging failed")
	case errdefs.ErrAuth:
		return fmt.Sprintf("upload rejected: invalid token (HTTP %d)", e.Status)
	case errdefs.ErrNotFound:
		return fmt.Sprintf("upload failed: assignment not found (HTTP %d), check the assignment id and Kelvin URL", e.Status)
	case errdefs.ErrServer:
		msg := fmt.Sprintf("upload failed: server error (HTTP %d)", e.Status)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	case errdefs.ErrTransport:
		return withDetail("upload failed: could not reach server")
	default:
		return err.Error()
	}
}
