package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"imgup/internal/models"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const uploadColumns = "id, path, link, delete_hash, digest, size_bytes, status, uploaded_at, delete_after, deleted_at"

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// AddUpload records a successful upload. An empty ID is filled in.
func (s *Store) AddUpload(ctx context.Context, upload *models.Upload) error {
	if upload == nil {
		return fmt.Errorf("upload is required")
	}
	if strings.TrimSpace(upload.DeleteHash) == "" {
		return fmt.Errorf("delete hash is required")
	}
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	if upload.Status == "" {
		upload.Status = models.UploadStatusActive
	}
	if !upload.Status.IsValid() {
		return fmt.Errorf("invalid upload status %q", upload.Status)
	}
	if upload.UploadedAt.IsZero() {
		upload.UploadedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO uploads ("+uploadColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		upload.ID,
		upload.Path,
		upload.Link,
		upload.DeleteHash,
		nullString(upload.Digest),
		upload.SizeBytes,
		string(upload.Status),
		formatTime(upload.UploadedAt),
		nullableTime(upload.DeleteAfter),
		nullableTime(upload.DeletedAt),
	)
	return err
}

// ListUploads returns the newest uploads first.
func (s *Store) ListUploads(ctx context.Context, limit int) ([]models.Upload, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+uploadColumns+" FROM uploads ORDER BY uploaded_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Upload
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *upload)
	}
	return out, rows.Err()
}

// FindByDigest returns the most recent non-deleted upload with the same
// content, or nil.
func (s *Store) FindByDigest(ctx context.Context, digest string) (*models.Upload, error) {
	if digest == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+uploadColumns+" FROM uploads WHERE digest = ? AND status != ? ORDER BY uploaded_at DESC LIMIT 1",
		digest, string(models.UploadStatusDeleted))
	return scanUpload(row)
}

// MarkScheduled records that handles will be deleted at deleteAfter.
func (s *Store) MarkScheduled(ctx context.Context, handles []string, deleteAfter time.Time) error {
	if len(handles) == 0 {
		return nil
	}
	args := make([]any, 0, len(handles)+2)
	args = append(args, string(models.UploadStatusScheduled), formatTime(deleteAfter))
	for _, h := range handles {
		args = append(args, h)
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE uploads SET status = ?, delete_after = ? WHERE delete_hash IN ("+placeholders(len(handles))+")",
		args...)
	return err
}

// MarkDeleted flags an upload as removed from the host. Unknown handles are
// ignored.
func (s *Store) MarkDeleted(ctx context.Context, handle string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE uploads SET status = ?, deleted_at = ? WHERE delete_hash = ?",
		string(models.UploadStatusDeleted), formatTime(s.now()), handle)
	return err
}

func scanUpload(scanner interface {
	Scan(dest ...any) error
}) (*models.Upload, error) {
	upload := models.Upload{}

	var digest, deleteAfter, deletedAt sql.NullString
	var status, uploadedAt string

	err := scanner.Scan(
		&upload.ID,
		&upload.Path,
		&upload.Link,
		&upload.DeleteHash,
		&digest,
		&upload.SizeBytes,
		&status,
		&uploadedAt,
		&deleteAfter,
		&deletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	upload.Digest = digest.String
	parsedStatus, err := models.ParseUploadStatus(status)
	if err != nil {
		return nil, err
	}
	upload.Status = parsedStatus

	parsedUploaded, err := parseTime(uploadedAt)
	if err != nil {
		return nil, err
	}
	upload.UploadedAt = parsedUploaded

	if deleteAfter.Valid {
		parsed, err := parseTime(deleteAfter.String)
		if err != nil {
			return nil, err
		}
		upload.DeleteAfter = &parsed
	}
	if deletedAt.Valid {
		parsed, err := parseTime(deletedAt.String)
		if err != nil {
			return nil, err
		}
		upload.DeletedAt = &parsed
	}

	return &upload, nil
}

func placeholders(count int) string {
	values := make([]string, count)
	for i := range values {
		values[i] = "?"
	}
	return strings.Join(values, ",")
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
