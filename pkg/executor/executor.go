// Package executor defines the outbound contract to the AI-agent runtime and
// its two concrete shapes: an HTTP gateway client and a file-drop that spawns
// a child process. The runner is coupled only to the Executor interface.
package executor

import (
	"context"
	"errors"
	"fmt"

	"cronx/pkg/models"
)

// Action is the payload of one trigger call.
type Action struct {
	Message  string            `json:"message"`
	Priority models.Priority   `json:"priority"`
	Context  map[string]string `json:"context,omitempty"`
}

// Response is the agent runtime's answer to a trigger.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Executor turns a job's action into an observable effect on the agent
// runtime. Trigger must honor the context deadline supplied by the caller;
// Notify is best-effort informational.
type Executor interface {
	Trigger(ctx context.Context, action Action) (*Response, error)
	Notify(ctx context.Context, message string, priority models.Priority) error
}

// FatalError marks a resource-level refusal (permission denied, disk full)
// that cannot possibly succeed on retry. The runner stops the fire on it.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal executor error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("fatal executor error: %s", e.Reason)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
