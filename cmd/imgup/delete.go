package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"imgup/internal/api"
	"imgup/internal/config"
	"imgup/internal/credentials"
	"imgup/internal/schedule"
)

func newDeleteCmd(cfg *config.Config, d *deps) *cobra.Command {
	var clientID string

	cmd := &cobra.Command{
		Use:   "delete <handle>...",
		Short: "Delete uploaded images by delete handle",
		Args:  requireAtLeastArgs(1, "at least one delete handle is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveClientID(cfg, clientID)
			if err != nil {
				return err
			}

			client := api.NewClient(cfg.APIURL, cfg.AuthURL)
			hist := openHistory(cfg)
			defer hist.close()

			out := newOutput(d.stdout)
			var failed []error
			for _, handle := range args {
				if err := client.DeleteImage(cmd.Context(), id, handle); err != nil {
					failed = append(failed, fmt.Errorf("delete %s: %w", handle, err))
					continue
				}
				hist.markDeleted(cmd.Context(), handle)
				if err := out.plain("deleted %s\n", handle); err != nil {
					return err
				}
			}
			return errors.Join(failed...)
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "client id to authenticate with (default from stored credentials)")
	return cmd
}

func resolveClientID(cfg *config.Config, override string) (string, error) {
	if id := strings.TrimSpace(override); id != "" {
		return id, nil
	}
	store, err := credentials.NewStore(cfg.CredentialsPath())
	if err != nil {
		return "", withExitCode(exitMissingDependency, err)
	}
	creds, err := store.Load()
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return "", withExitCode(exitCredentialStore, fmt.Errorf("%w; run `imgup auth` or pass --client-id", err))
		}
		return "", withExitCode(exitCredentialStore, err)
	}
	return creds.ClientID, nil
}

func newScheduledDeleteCmd(cfg *config.Config, d *deps) *cobra.Command {
	return &cobra.Command{
		Use:    schedule.Subcommand,
		Short:  "Run a scheduled deletion (internal)",
		Hidden: true,
		Args:   requireNoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := schedule.JobFromEnv(d.getenv)
			if err != nil {
				return withExitCode(exitUsage, err)
			}
			return runScheduledDelete(cmd.Context(), cfg, job)
		},
	}
}

func runScheduledDelete(ctx context.Context, cfg *config.Config, job schedule.Job) error {
	hist := openHistory(cfg)
	defer hist.close()

	runner := schedule.Runner{
		Deleter: api.NewClient(cfg.APIURL, cfg.AuthURL),
		OnDeleted: func(handle string) {
			hist.markDeleted(ctx, handle)
		},
	}
	deleted := runner.Run(ctx, job)
	slog.Debug("scheduled deletion finished", "deleted", deleted, "total", len(job.Handles))
	return nil
}
