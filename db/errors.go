package db

import "fmt"

// ReferentialIntegrityError reports a delete blocked by rows which still
// reference the row being deleted. The delete does not partially apply.
type ReferentialIntegrityError struct {
	Kind  string // the referencing entity kind, eg "transaction"
	Count int    // the number of referencing rows
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("cannot delete: referenced by %d %s row(s)", e.Count, e.Kind)
}

// ConfigurationError reports a required setting that has not been configured.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("setting %q is not configured", e.Setting)
}
