package cli

import (
	"context"
	"fmt"
	"log/slog"

	"cargo-kelvin/internal/archive"
	"cargo-kelvin/internal/config"
	"cargo-kelvin/internal/kelvin"
	"cargo-kelvin/internal/logger"
	"cargo-kelvin/internal/workspace"
)

// Submit runs scan, build, upload and report in that order. The first
// failing stage aborts the rest.
func Submit(ctx context.Context, run *config.Run, open bool, env Env) error {
	env = env.withDefaults()
	slog.SetDefault(logger.SetupLogger(run.Env, run.LogLevel, env.Stderr))

	rules := workspace.RulesFromConfig(run.Scan)
	root, err := workspace.FindRoot(run.Dir, rules)
	if err != nil {
		return err
	}
	scanner, err := workspace.NewScanner(root, rules)
	if err != nil {
		return err
	}
	slog.Info("collecting workspace", "root", scanner.Root())

	arc, err := archive.NewBuilder(run.Scan.TempDir).BuildSeq(ctx, scanner.Files())
	if err != nil {
		return err
	}

	opts := []kelvin.Option{}
	if env.HTTPClient != nil {
		opts = append(opts, kelvin.WithHTTPClient(env.HTTPClient))
	}
	opts = append(opts, kelvin.WithTimeout(run.Submit.Timeout))
	client := kelvin.NewClient(run.Submit.URL, opts...)

	res, err := client.Submit(ctx, kelvin.SubmissionRequest{
		AssignmentID: run.AssignmentID,
		Token:        run.Submit.Token,
		FileName:     archive.FileName,
		Archive:      arc.Data,
	})
	if err != nil {
		return err
	}

	report(env, res)
	if open && res.URL != "" {
		if err := env.OpenBrowser(res.URL); err != nil {
			slog.Warn("could not open browser", "url", res.URL, "err", err)
		}
	}
	return nil
}

func report(env Env, res *kelvin.SubmissionResult) {
	if res.ID == 0 {
		if res.Message != "" {
			fmt.Fprintf(env.Stdout, "Submit uploaded: %s\n", res.Message)
		} else {
			fmt.Fprintln(env.Stdout, "Submit uploaded")
		}
		return
	}
	if res.TaskName != "" {
		fmt.Fprintf(env.Stdout, "Created submit #%d for task %s\n", res.ID, res.TaskName)
	} else {
		fmt.Fprintf(env.Stdout, "Created submit #%d\n", res.ID)
	}
	if res.URL != "" {
		fmt.Fprintf(env.Stdout, "You can find the submit at %s\n", res.URL)
	}
}
