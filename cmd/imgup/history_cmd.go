package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"imgup/internal/config"
	"imgup/internal/format"
	"imgup/internal/history"
	"imgup/internal/models"
)

// historyRecorder writes to the upload history on a best-effort basis. A nil
// recorder, or one without a store, does nothing.
type historyRecorder struct {
	store *history.Store
}

func openHistory(cfg *config.Config) *historyRecorder {
	if !cfg.History.Enabled {
		return &historyRecorder{}
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		slog.Warn("upload history unavailable", "path", cfg.HistoryPath(), "error", err)
		return &historyRecorder{}
	}
	return &historyRecorder{store: store}
}

func (h *historyRecorder) record(ctx context.Context, upload *models.Upload) {
	if h == nil || h.store == nil {
		return
	}
	if previous, err := h.store.FindByDigest(ctx, upload.Digest); err == nil && previous != nil {
		slog.Info("same content uploaded before", "path", upload.Path, "previous", previous.Link)
	}
	if err := h.store.AddUpload(ctx, upload); err != nil {
		slog.Warn("record upload history", "path", upload.Path, "error", err)
	}
}

func (h *historyRecorder) markScheduled(ctx context.Context, handles []string, deleteAfter time.Time) {
	if h == nil || h.store == nil {
		return
	}
	if err := h.store.MarkScheduled(ctx, handles, deleteAfter); err != nil {
		slog.Warn("record scheduled deletion", "error", err)
	}
}

func (h *historyRecorder) markDeleted(ctx context.Context, handle string) {
	if h == nil || h.store == nil {
		return
	}
	if err := h.store.MarkDeleted(ctx, handle); err != nil {
		slog.Debug("record deletion", "handle", handle, "error", err)
	}
}

func (h *historyRecorder) close() {
	if h == nil || h.store == nil {
		return
	}
	if err := h.store.Close(); err != nil {
		slog.Debug("close upload history", "error", err)
	}
}

func newHistoryCmd(cfg *config.Config, d *deps) *cobra.Command {
	var jsonOutput, yamlOutput bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous uploads",
		Args:  requireNoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput && yamlOutput {
				return withExitCode(exitUsage, errors.New("--json and --yaml are mutually exclusive"))
			}
			if limit < 0 {
				return withExitCode(exitUsage, fmt.Errorf("--limit must not be negative"))
			}
			if !cfg.History.Enabled {
				return withExitCode(exitUsage, errors.New("upload history is disabled (history.enabled = false)"))
			}

			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return withExitCode(exitMissingDependency, fmt.Errorf("open history: %w", err))
			}
			defer store.Close()

			uploads, err := store.ListUploads(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if uploads == nil {
				uploads = []models.Upload{}
			}

			out := newOutput(d.stdout)
			switch {
			case jsonOutput:
				return out.structured(format.JSONFormatter{}, uploads)
			case yamlOutput:
				return out.structured(format.YAMLFormatter{}, uploads)
			default:
				return out.uploadList(uploads)
			}
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.Flags().BoolVar(&yamlOutput, "yaml", false, "output YAML")
	cmd.Flags().IntVar(&limit, "limit", history.DefaultListLimit, "maximum number of uploads to list")
	return cmd
}
