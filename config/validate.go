package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
}

func (w ValidationWarning) String() string {
	return fmt.Sprintf("config warning: %s: %s", w.Field, w.Message)
}

// ValidationResults holds the results of configuration validation.
type ValidationResults struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are validation errors.
func (r ValidationResults) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are validation warnings.
func (r ValidationResults) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// ErrorMessage returns a combined error message for all validation errors.
func (r ValidationResults) ErrorMessage() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// WriteWarnings writes all warnings to the given writer.
func (r ValidationResults) WriteWarnings(w io.Writer) {
	for _, warn := range r.Warnings {
		_, _ = fmt.Fprintln(w, warn.String())
	}
}

// Validate checks the configuration for errors and warnings.
// It returns errors for invalid values that would cause runtime issues,
// and warnings for issues that can be safely ignored.
func (c *Config) Validate() ValidationResults {
	var result ValidationResults

	addError := func(field, format string, args ...any) {
		result.Errors = append(result.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	addWarning := func(field, format string, args ...any) {
		result.Warnings = append(result.Warnings, ValidationWarning{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.RepoDir) == "" {
		addError("repo_dir", "must not be empty")
	}

	if u, err := url.Parse(c.URLPrefix); err != nil {
		addError("url_prefix", "invalid URL %q: %v", c.URLPrefix, err)
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		addError("url_prefix", "%q must be an absolute http or https URL", c.URLPrefix)
	} else if strings.HasSuffix(c.URLPrefix, "/") {
		addWarning("url_prefix", "trailing slash is ignored")
	}

	if strings.TrimSpace(c.CommitMessage) == "" {
		addError("commit_message", "must not be empty")
	}
	if c.PushAttempts < 1 {
		addError("push_attempts", "must be at least 1, got %d", c.PushAttempts)
	}
	if c.LockTimeout <= 0 {
		addError("lock_timeout", "must be positive, got %s", c.LockTimeout)
	}
	if c.Fetch.Timeout <= 0 {
		addError("fetch.timeout", "must be positive, got %s", c.Fetch.Timeout)
	}
	if c.Fetch.Attempts < 1 {
		addError("fetch.attempts", "must be at least 1, got %d", c.Fetch.Attempts)
	}
	if c.Fetch.RetryDelay < 0 {
		addError("fetch.retry_delay", "must not be negative, got %s", c.Fetch.RetryDelay)
	}
	if c.Fetch.Token != "" && c.Fetch.Username == "" {
		addWarning("fetch.token", "ignored without fetch.username")
	}

	return result
}

// Check validates c, writing warnings to w and returning the combined
// validation errors, if any.
func (c *Config) Check(w io.Writer) error {
	result := c.Validate()
	if result.HasWarnings() {
		result.WriteWarnings(w)
	}
	if result.HasErrors() {
		return errors.New(result.ErrorMessage())
	}
	return nil
}
