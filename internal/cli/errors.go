// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes shared by every command.
//
// Command handlers always return errors. Run decides how to display them
// and which exit code the process ends with.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/ragrun/internal/ingest"
	"github.com/jeranaias/ragrun/internal/ollama"
	"github.com/jeranaias/ragrun/internal/session"
	"github.com/jeranaias/ragrun/internal/storage"
	"github.com/jeranaias/ragrun/internal/workflow"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitModelError indicates Ollama is down or the model is missing
	ExitModelError = 4
	// ExitNetworkError indicates a network or connectivity error
	ExitNetworkError = 5
	// ExitNoAnswerError indicates the workflow could not produce a grounded answer
	ExitNoAnswerError = 6
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitInterrupted indicates the user stopped the run
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "history", "prompts")
	Action  string // Action being performed (e.g., "show", "delete")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "chat", "prompt", "key")
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return NewValidationErrorWithExample(argName, "", "required argument missing", usage)
}

// ErrUnknownSubcommand creates an error for an unrecognized subcommand.
func ErrUnknownSubcommand(command, sub, usage string) error {
	return NewValidationErrorWithExample(command+" subcommand", sub, "unknown subcommand", usage)
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError prints err in the format selected by jsonMode.
func DisplayError(command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		DisplayErrorJSON(command, err)
		return
	}
	fmt.Fprintf(os.Stderr, "\n%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
	if hint := errorHint(err); hint != "" {
		fmt.Fprintf(os.Stderr, "%s\n", DimStyle.Render(hint))
	}
	fmt.Fprintln(os.Stderr)
}

// DisplayErrorJSON writes err as a JSON object on stdout.
func DisplayErrorJSON(command string, err error) {
	output := map[string]any{
		"success":    false,
		"command":    command,
		"error":      err.Error(),
		"error_type": errorType(err),
	}

	var cmdErr *CommandError
	var valErr *ValidationError
	var nfErr *NotFoundError
	switch {
	case errors.As(err, &valErr):
		output["field"] = valErr.Field
		output["value"] = valErr.Value
		if valErr.Example != "" {
			output["example"] = valErr.Example
		}
	case errors.As(err, &nfErr):
		output["resource"] = nfErr.Resource
		output["id"] = nfErr.ID
	case errors.As(err, &cmdErr):
		output["action"] = cmdErr.Action
		output["reason"] = cmdErr.Reason
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(output)
}

func errorType(err error) string {
	var valErr *ValidationError
	var nfErr *NotFoundError
	var cmdErr *CommandError
	switch {
	case errors.As(err, &valErr):
		return "validation_error"
	case errors.As(err, &nfErr):
		return "not_found_error"
	case errors.Is(err, workflow.ErrNotSupported):
		return "no_answer"
	case errors.Is(err, workflow.ErrForceStopped):
		return "force_stopped"
	case ollama.IsNotRunning(err), ollama.IsModelNotFound(err):
		return "model_error"
	case errors.As(err, &cmdErr):
		return "command_error"
	default:
		return "generic_error"
	}
}

// errorHint suggests a next step for errors the user can fix.
func errorHint(err error) string {
	switch {
	case ollama.IsNotRunning(err):
		return "Start Ollama with: ollama serve"
	case ollama.IsModelNotFound(err):
		return "Pull the model with: ollama pull <model>  (see: ragrun models)"
	case errors.Is(err, session.ErrNotReady), errors.Is(err, ingest.ErrNoPath):
		return "Pass a document with --file <path>"
	case errors.Is(err, workflow.ErrNotSupported):
		return "Try rephrasing the question or raising --max-retries"
	}
	return ""
}

// GetExitCode determines the exit code for err.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var valErr *ValidationError
	var nfErr *NotFoundError
	switch {
	case errors.As(err, &valErr):
		return ExitUsageError
	case errors.As(err, &nfErr),
		errors.Is(err, storage.ErrChatNotFound),
		errors.Is(err, storage.ErrPromptNotFound):
		return ExitNotFoundError
	case errors.Is(err, workflow.ErrForceStopped), errors.Is(err, context.Canceled), ollama.IsCanceled(err):
		return ExitInterrupted
	case errors.Is(err, workflow.ErrNotSupported):
		return ExitNoAnswerError
	case ollama.IsNotRunning(err), ollama.IsModelNotFound(err):
		return ExitModelError
	case ollama.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, session.ErrNotReady), errors.Is(err, ingest.ErrNoPath):
		return ExitUsageError
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "config"):
		return ExitConfigError
	case strings.Contains(msg, "connection"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "dial"),
		strings.Contains(msg, "unreachable"):
		return ExitNetworkError
	case strings.Contains(msg, "timed out"):
		return ExitTimeoutError
	case strings.Contains(msg, "file not found"):
		return ExitNotFoundError
	}
	return ExitGeneralError
}
