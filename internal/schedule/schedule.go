package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	// Subcommand is the hidden CLI entry point run by the detached child.
	Subcommand = "scheduled-delete"

	envDelay    = "IMGUP_DELETE_DELAY"
	envClientID = "IMGUP_DELETE_CLIENT_ID"
	envHandles  = "IMGUP_DELETE_HANDLES"
)

var ErrNoJob = errors.New("no scheduled deletion in environment")

// Job is everything the detached deleter owns once spawned.
type Job struct {
	Delay    time.Duration
	ClientID string
	Handles  []string
}

// Environ encodes the job as environment variables.
func (j Job) Environ() ([]string, error) {
	handles, err := json.Marshal(j.Handles)
	if err != nil {
		return nil, err
	}
	return []string{
		envDelay + "=" + j.Delay.String(),
		envClientID + "=" + j.ClientID,
		envHandles + "=" + string(handles),
	}, nil
}

// JobFromEnv decodes a job written by Environ.
func JobFromEnv(getenv func(string) string) (Job, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	rawHandles := strings.TrimSpace(getenv(envHandles))
	clientID := strings.TrimSpace(getenv(envClientID))
	if rawHandles == "" || clientID == "" {
		return Job{}, ErrNoJob
	}

	var handles []string
	if err := json.Unmarshal([]byte(rawHandles), &handles); err != nil {
		return Job{}, fmt.Errorf("decode %s: %w", envHandles, err)
	}

	var delay time.Duration
	if raw := strings.TrimSpace(getenv(envDelay)); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			return Job{}, fmt.Errorf("invalid %s %q", envDelay, raw)
		}
		delay = parsed
	}
	return Job{Delay: delay, ClientID: clientID, Handles: handles}, nil
}

// Scheduler hands a deletion job off to something that outlives the caller.
type Scheduler interface {
	Schedule(delay time.Duration, clientID string, handles []string) error
}

// ProcessScheduler re-executes the current binary as a detached child
// running Subcommand. The child is never waited on; its failures are not
// observable by the parent.
type ProcessScheduler struct {
	executable func() (string, error)
	start      func(*exec.Cmd) error
}

// NewProcessScheduler creates a scheduler that spawns os.Executable().
func NewProcessScheduler() *ProcessScheduler {
	return &ProcessScheduler{
		executable: os.Executable,
		start:      startDetached,
	}
}

// Command builds the child command without starting it.
func (p *ProcessScheduler) Command(job Job) (*exec.Cmd, error) {
	exe, err := p.executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	env, err := job.Environ()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, Subcommand)
	cmd.Env = append(os.Environ(), env...)
	detach(cmd)
	return cmd, nil
}

// Schedule spawns the child and returns as soon as it has started.
func (p *ProcessScheduler) Schedule(delay time.Duration, clientID string, handles []string) error {
	if len(handles) == 0 {
		return nil
	}
	job := Job{
		Delay:    delay,
		ClientID: clientID,
		Handles:  append([]string(nil), handles...),
	}
	cmd, err := p.Command(job)
	if err != nil {
		return err
	}
	if err := p.start(cmd); err != nil {
		return fmt.Errorf("start deletion process: %w", err)
	}
	slog.Debug("scheduled deletion", "delay", delay, "handles", len(handles))
	return nil
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// Deleter removes one image by delete handle.
type Deleter interface {
	DeleteImage(ctx context.Context, clientID, deleteHash string) error
}

// Runner executes a job inside the detached child.
type Runner struct {
	Deleter Deleter
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnDeleted is called after each successful deletion.
	OnDeleted func(handle string)
}

// Run waits for the job delay, then deletes every handle in order. Failures
// are logged and skipped. It returns the number of handles deleted.
func (r Runner) Run(ctx context.Context, job Job) int {
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	if err := sleep(ctx, job.Delay); err != nil {
		slog.Debug("scheduled deletion cancelled", "error", err)
		return 0
	}

	deleted := 0
	for _, handle := range job.Handles {
		if err := r.Deleter.DeleteImage(ctx, job.ClientID, handle); err != nil {
			slog.Debug("scheduled deletion failed", "handle", handle, "error", err)
			continue
		}
		deleted++
		if r.OnDeleted != nil {
			r.OnDeleted(handle)
		}
	}
	return deleted
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
