package main

import (
	"fmt"
	"io"
	"time"

	"imgup/internal/format"
	"imgup/internal/models"
)

type output struct {
	w io.Writer
}

func newOutput(w io.Writer) output {
	return output{w: w}
}

func (o output) structured(f format.Formatter, payload any) error {
	return f.Write(o.w, payload)
}

func (o output) plain(layout string, args ...any) error {
	_, err := fmt.Fprintf(o.w, layout, args...)
	return err
}

func (o output) uploadList(uploads []models.Upload) error {
	for _, upload := range uploads {
		if err := o.plain("%s\n", formatUploadLine(upload)); err != nil {
			return err
		}
	}
	return nil
}

func formatUploadLine(upload models.Upload) string {
	line := fmt.Sprintf("%s  %-9s  %s  %s", formatTime(upload.UploadedAt), upload.Status, upload.Link, upload.Path)
	switch {
	case upload.DeletedAt != nil:
		line += "  (deleted " + formatTime(*upload.DeletedAt) + ")"
	case upload.DeleteAfter != nil:
		line += "  (delete after " + formatTime(*upload.DeleteAfter) + ")"
	}
	return line
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
