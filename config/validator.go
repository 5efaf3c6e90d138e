package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/sarchlab/viewperf/logging"
)

// The report formats.
const (
	FormatTree  = "tree"
	FormatViews = "views"
	FormatJSON  = "json"
	FormatNone  = "none"
)

// ErrInvalid marks configuration validation failures.
var ErrInvalid = errors.New("invalid configuration")

// ValidReportFormats returns the list of valid report formats.
func ValidReportFormats() []string {
	return []string{FormatTree, FormatViews, FormatJSON, FormatNone}
}

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))

	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}

	return sb.String()
}

// Validate checks the configuration. The returned error matches ErrInvalid
// with errors.Is and carries the ValidationErrors.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Tracking.MaxDepth < 2 {
		errs = append(errs, ValidationError{
			Field: "tracking.max_depth", Value: c.Tracking.MaxDepth,
			Message: "must be at least 2",
		})
	}

	r := c.Report
	if !slices.Contains(ValidReportFormats(), r.Format) {
		errs = append(errs, ValidationError{
			Field: "report.format", Value: r.Format,
			Message: "must be one of " + strings.Join(ValidReportFormats(), ", "),
		})
	}

	if !logging.IsValidLevel(r.LogLevel) {
		errs = append(errs, ValidationError{
			Field: "report.log_level", Value: r.LogLevel,
			Message: "must be one of debug, info, warn, error",
		})
	}

	if !logging.IsValidFormat(r.LogFormat) {
		errs = append(errs, ValidationError{
			Field: "report.log_format", Value: r.LogFormat,
			Message: "must be json or text",
		})
	}

	if r.InfoThreshold < 0 ||
		r.WarnThreshold < r.InfoThreshold ||
		r.ErrorThreshold < r.WarnThreshold {
		errs = append(errs, ValidationError{
			Field: "report.*_threshold",
			Value: fmt.Sprintf("%s/%s/%s",
				r.InfoThreshold, r.WarnThreshold, r.ErrorThreshold),
			Message: "must satisfy 0 <= info <= warn <= error",
		})
	}

	if r.SegmentSize < 64 {
		errs = append(errs, ValidationError{
			Field: "report.segment_size", Value: r.SegmentSize,
			Message: "must be at least 64",
		})
	}

	if c.Async.QueueSize < 0 {
		errs = append(errs, ValidationError{
			Field: "async.queue_size", Value: c.Async.QueueSize,
			Message: "must not be negative",
		})
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		errs = append(errs, ValidationError{
			Field: "monitor.port", Value: c.Monitor.Port,
			Message: "must be between 0 and 65535",
		})
	}

	if len(errs) == 0 {
		return nil
	}

	return errors.Mark(errs, ErrInvalid)
}
