// Package security provides submission validation, sanitization, and limits
// for the ragjobs package.
package security

import (
	"strings"
	"unicode/utf8"

	"github.com/prismrag/ragjobs/pkg/core"
)

// Limits applied at submission and storage time
const (
	// MaxFileSizeBytes is the ceiling for ingested files (50 MiB)
	MaxFileSizeBytes = 50 * 1024 * 1024

	// MaxPromptLength is the maximum prompt length in characters
	MaxPromptLength = 4000

	// MaxFilenameLength is the maximum length for submitted filenames
	MaxFilenameLength = 255

	// MaxErrorMessageLength is the maximum length for stored failure messages
	MaxErrorMessageLength = 2048

	// MaxStageRetries is the hard limit for automatic per-stage retries
	MaxStageRetries = 3

	// MaxRetentionLimit is the hard limit for retained terminal jobs
	MaxRetentionLimit = 10000
)

// AllowedMimeTypes is the ingestion allow-list.
var AllowedMimeTypes = map[string]bool{
	"application/pdf":  true,
	"text/plain":       true,
	"application/json": true,
}

// ValidateFile checks an ingestion payload against the allow-list and the
// size ceiling. All failures are non-retryable InvalidInput errors.
func ValidateFile(p core.FilePayload) error {
	if p.Filename == "" {
		return core.InvalidInput(core.ErrFilenameMissing)
	}
	if utf8.RuneCountInString(p.Filename) > MaxFilenameLength {
		return core.InvalidInput(core.ErrFilenameTooLong)
	}
	if !AllowedMimeTypes[p.MimeType] {
		return core.InvalidInput(core.ErrUnsupportedFileType)
	}
	if p.SizeBytes < 0 {
		return core.InvalidInput(core.ErrNegativeFileSize)
	}
	if p.SizeBytes > MaxFileSizeBytes {
		return core.InvalidInput(core.ErrFileTooLarge)
	}
	return nil
}

// ValidatePrompt checks a generation payload.
func ValidatePrompt(p core.PromptPayload) error {
	if strings.TrimSpace(p.Prompt) == "" {
		return core.InvalidInput(core.ErrEmptyPrompt)
	}
	if utf8.RuneCountInString(p.Prompt) > MaxPromptLength {
		return core.InvalidInput(core.ErrPromptTooLong)
	}
	return nil
}

// ValidatePayload dispatches to the kind-specific validator.
func ValidatePayload(p core.Payload) error {
	switch v := p.(type) {
	case core.FilePayload:
		return ValidateFile(v)
	case *core.FilePayload:
		return ValidateFile(*v)
	case core.PromptPayload:
		return ValidatePrompt(v)
	case *core.PromptPayload:
		return ValidatePrompt(*v)
	case nil:
		return core.InvalidInput(core.ErrNilPayload)
	}
	return core.InvalidInput(core.ErrNilPayload)
}

// SanitizeErrorMessage truncates and sanitizes failure messages before they
// are stored on a job or archived.
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Strip null bytes and control characters (except whitespace)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))
	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}
	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}
	return result
}

// ClampStageRetries ensures the per-stage retry count is within limits.
func ClampStageRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxStageRetries {
		return MaxStageRetries
	}
	return n
}

// ClampRetentionLimit ensures the terminal-job retention cap is within limits.
func ClampRetentionLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxRetentionLimit {
		return MaxRetentionLimit
	}
	return n
}
