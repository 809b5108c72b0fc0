package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"imgup/internal/api"
	"imgup/internal/auth"
	"imgup/internal/config"
	"imgup/internal/credentials"
	"imgup/internal/format"
	"imgup/internal/models"
	"imgup/internal/upload"
)

func runUpload(ctx context.Context, cfg *config.Config, d *deps, opts *uploadOptions, args []string, argsLenAtDash int) error {
	settings, err := resolveLinkSettings(opts.linkType, opts.displaySize, cfg.LinkType, cfg.DisplaySize)
	if err != nil {
		return err
	}
	delay, err := parseDeleteSeconds(opts.deleteSeconds)
	if err != nil {
		return err
	}
	files, err := collectFiles(opts.files, d.stdin, opts.nullInput, args, argsLenAtDash)
	if err != nil {
		return err
	}
	if err := validateFiles(files); err != nil {
		return err
	}

	client := api.NewClient(cfg.APIURL, cfg.AuthURL)
	store, err := credentials.NewStore(cfg.CredentialsPath())
	if err != nil {
		return withExitCode(exitMissingDependency, err)
	}

	creds, err := store.Load()
	switch {
	case errors.Is(err, credentials.ErrNotFound):
		if opts.nullInput {
			return withExitCode(exitUsage, errors.New("no credentials yet and stdin holds the file list; run `imgup auth` first"))
		}
		creds, err = runSetup(ctx, d, client, store)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return nil
		}
	case err != nil:
		return withExitCode(exitCredentialStore, err)
	}

	if len(files) == 0 {
		return withExitCode(exitNothingToDo, errors.New("nothing to do: no files given"))
	}

	if err := probeHost(ctx, client, d.probeTimeout); err != nil {
		return withExitCode(exitHostUnreachable, fmt.Errorf("image host %s is unreachable: %w", cfg.APIURL, err))
	}

	hist := openHistory(cfg)
	defer hist.close()

	engine := upload.NewEngine(client, func(_ int, u models.Upload) error {
		if _, err := fmt.Fprintln(d.stdout, format.Link(u.Link, settings.linkType, settings.size)); err != nil {
			return err
		}
		hist.record(ctx, &u)
		return nil
	})

	uploadErr := uploadWithRetry(ctx, client, store, engine, files, creds)

	if delay > 0 {
		if err := scheduleDeletion(ctx, d, hist, delay, creds.ClientID, engine.DeleteHandles()); err != nil {
			return errors.Join(uploadErr, err)
		}
	}
	return uploadErr
}

// uploadWithRetry uploads files once and, on a partial failure, refreshes
// the token and retries the remaining files exactly once.
func uploadWithRetry(ctx context.Context, client *api.Client, store *credentials.Store, engine *upload.Engine, files []string, creds credentials.Credentials) error {
	_, err := engine.Upload(ctx, files, creds.AccessToken)
	if err == nil {
		return nil
	}

	var batchErr *upload.BatchError
	if !errors.As(err, &batchErr) {
		return err
	}
	slog.Warn("upload failed; refreshing token and retrying", "path", batchErr.Path, "succeeded", batchErr.Succeeded, "error", batchErr.Err)

	refreshed, err := auth.Refresh(ctx, client, store, creds)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshFailed) {
			return err
		}
		return withExitCode(exitCredentialStore, err)
	}

	if _, err := engine.Upload(ctx, files[batchErr.Succeeded:], refreshed.AccessToken); err != nil {
		if errors.As(err, &batchErr) {
			return withExitCode(exitRetryFailed, fmt.Errorf("retry: %w", err))
		}
		return err
	}
	return nil
}

func probeHost(ctx context.Context, client *api.Client, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return client.Ping(probeCtx)
}

func scheduleDeletion(ctx context.Context, d *deps, hist *historyRecorder, delay time.Duration, clientID string, handles []string) error {
	if len(handles) == 0 || d.scheduler == nil {
		return nil
	}
	if err := d.scheduler.Schedule(delay, clientID, handles); err != nil {
		return fmt.Errorf("schedule deletion: %w", err)
	}
	hist.markScheduled(ctx, handles, time.Now().Add(delay))
	fmt.Fprintf(d.stderr, "%d image(s) will be deleted in %s\n", len(handles), delay)
	return nil
}
