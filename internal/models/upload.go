package models

import (
	"fmt"
	"strings"
	"time"
)

// UploadStatus tracks what happened to a hosted image after upload.
type UploadStatus string

const (
	UploadStatusActive    UploadStatus = "active"
	UploadStatusScheduled UploadStatus = "scheduled"
	UploadStatusDeleted   UploadStatus = "deleted"
)

// Upload is one successfully hosted image.
type Upload struct {
	ID          string       `json:"id" yaml:"id"`
	Path        string       `json:"path" yaml:"path"`
	Link        string       `json:"link" yaml:"link"`
	DeleteHash  string       `json:"delete_hash" yaml:"delete_hash"`
	Digest      string       `json:"digest,omitempty" yaml:"digest,omitempty"`
	SizeBytes   int64        `json:"size_bytes" yaml:"size_bytes"`
	Status      UploadStatus `json:"status" yaml:"status"`
	UploadedAt  time.Time    `json:"uploaded_at" yaml:"uploaded_at"`
	DeleteAfter *time.Time   `json:"delete_after,omitempty" yaml:"delete_after,omitempty"`
	DeletedAt   *time.Time   `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
}

// IsValid reports whether s is a known status.
func (s UploadStatus) IsValid() bool {
	switch s {
	case UploadStatusActive, UploadStatusScheduled, UploadStatusDeleted:
		return true
	default:
		return false
	}
}

// ParseUploadStatus normalizes and validates a stored status value.
func ParseUploadStatus(raw string) (UploadStatus, error) {
	value := UploadStatus(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("status is required")
	}
	if !value.IsValid() {
		return "", fmt.Errorf("invalid upload status: %s", value)
	}
	return value, nil
}
