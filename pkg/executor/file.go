package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cronx/pkg/models"
)

// FileConfig configures the file-drop executor.
type FileConfig struct {
	// Dir is the directory trigger files are dropped into.
	Dir string
	// Command is the agent binary invoked with the trigger file path appended
	// to Args.
	Command string
	Args    []string
}

// FileExecutor writes a trigger file atomically and then invokes a child
// process pointing at it. The rename guarantees the agent never observes a
// half-written file even if it watches the directory itself.
type FileExecutor struct {
	cfg    FileConfig
	logger *zap.Logger
}

// triggerPayload is the on-disk shape of one trigger.
type triggerPayload struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Message     string            `json:"message"`
	Priority    models.Priority   `json:"priority"`
	Context     map[string]string `json:"context,omitempty"`
	TriggeredAt int64             `json:"triggered_at"`
}

// NewFile builds the file-drop executor and ensures the drop directory exists.
func NewFile(cfg FileConfig, logger *zap.Logger) (*FileExecutor, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("file executor requires a command")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, classifyFSError("create trigger directory", err)
	}
	return &FileExecutor{cfg: cfg, logger: logger}, nil
}

// Trigger drops the action file and runs the agent command against it. The
// child process inherits the caller's deadline via CommandContext.
func (e *FileExecutor) Trigger(ctx context.Context, action Action) (*Response, error) {
	path, err := e.writeTrigger(triggerPayload{
		ID:          uuid.New().String(),
		Kind:        "trigger",
		Message:     action.Message,
		Priority:    action.Priority,
		Context:     action.Context,
		TriggeredAt: time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.cfg.Command, append(append([]string{}, e.cfg.Args...), path)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &Response{
				Success: false,
				Error:   fmt.Sprintf("agent exited with code %d: %s", exitErr.ExitCode(), stderr.String()),
			}, nil
		}
		return nil, classifyFSError("invoke agent", err)
	}

	return &Response{Success: true, Message: stdout.String()}, nil
}

// Notify drops an informational file without invoking the agent; the agent
// picks notifications up on its own cadence.
func (e *FileExecutor) Notify(ctx context.Context, message string, priority models.Priority) error {
	_, err := e.writeTrigger(triggerPayload{
		ID:          uuid.New().String(),
		Kind:        "notification",
		Message:     message,
		Priority:    priority,
		TriggeredAt: time.Now().UnixMilli(),
	})
	return err
}

// writeTrigger writes the payload to a temp file and renames it into place.
func (e *FileExecutor) writeTrigger(p triggerPayload) (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal trigger: %w", err)
	}

	tmp := filepath.Join(e.cfg.Dir, "."+p.ID+".tmp")
	final := filepath.Join(e.cfg.Dir, p.ID+".json")

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", classifyFSError("write trigger file", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", classifyFSError("publish trigger file", err)
	}
	return final, nil
}

// classifyFSError promotes permission and disk-space failures to fatal;
// retrying those within the same fire cannot succeed.
func classifyFSError(op string, err error) error {
	if os.IsPermission(err) {
		return &FatalError{Reason: op + ": permission denied", Err: err}
	}
	if errors.Is(err, syscall.ENOSPC) {
		return &FatalError{Reason: op + ": no space left on device", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
