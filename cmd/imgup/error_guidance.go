package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"imgup/internal/api"
	"imgup/internal/auth"
	"imgup/internal/credentials"
	"imgup/internal/format"
)

// Exit codes. Each failure category has its own code so scripts can react.
const (
	exitOK                   = 0
	exitUsage                = 1
	exitMissingDependency    = 2
	exitInvalidLinkType      = 3
	exitInvalidDisplaySize   = 4
	exitEmptyInput           = 5
	exitExchangeFailed       = 6
	exitInvalidDeleteSeconds = 7
	exitRefreshFailed        = 8
	exitRetryFailed          = 9
	exitHostUnreachable      = 10
	exitNothingToDo          = 11
	exitCredentialStore      = 12
)

// exitError attaches a process exit code to an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}

	switch {
	case errors.Is(err, format.ErrInvalidLinkType):
		return exitInvalidLinkType
	case errors.Is(err, format.ErrInvalidDisplaySize):
		return exitInvalidDisplaySize
	case errors.Is(err, errInvalidDeleteSeconds):
		return exitInvalidDeleteSeconds
	case errors.Is(err, auth.ErrEmptyInput):
		return exitEmptyInput
	case errors.Is(err, auth.ErrExchangeFailed):
		return exitExchangeFailed
	case errors.Is(err, auth.ErrRefreshFailed):
		return exitRefreshFailed
	case errors.Is(err, credentials.ErrNotFound), errors.Is(err, credentials.ErrIncomplete):
		return exitCredentialStore
	default:
		return exitUsage
	}
}

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	switch {
	case errors.Is(err, auth.ErrExchangeFailed):
		lines = append(lines, "hint: PINs expire quickly; run `imgup auth` and enter a fresh one.")
	case errors.Is(err, auth.ErrRefreshFailed):
		lines = append(lines, "hint: the stored refresh token may be revoked; run `imgup auth` to authorize again.")
	case errors.Is(err, credentials.ErrIncomplete):
		lines = append(lines, "hint: the credential file is damaged; run `imgup auth` to recreate it.")
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
			lines = append(lines, "hint: the access token was rejected; run `imgup auth` if this persists.")
		case apiErr.Status == http.StatusTooManyRequests:
			lines = append(lines, "hint: rate limit reached; wait before uploading again.")
		case apiErr.Status >= 500:
			lines = append(lines, "hint: the image host returned an internal error; try again later.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check connectivity or increase IMGUP_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: check network connectivity to the image host.",
			"hint: IMGUP_API_URL overrides the API endpoint.",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
