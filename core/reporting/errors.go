package reporting

import (
	"errors"
	"fmt"
)

// ConfigurationError rejects an invalid filter or option before any
// aggregation work begins.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("reporting: invalid %s: %s", e.Field, e.Reason)
}

func configErr(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

// DataIntegrityError signals an orphaned reference met while joining the
// snapshot. The store is expected to enforce referential integrity, so the
// engine fails fast rather than skipping the row.
type DataIntegrityError struct {
	Entity     string
	IncidentID int64
	RefID      int64
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("reporting: incident %d references missing %s %d", e.IncidentID, e.Entity, e.RefID)
}

// DataSourceError wraps a snapshot load failure. Reports are idempotent
// reads, so retrying is the caller's concern.
type DataSourceError struct {
	Err error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("reporting: snapshot load failed: %v", e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
