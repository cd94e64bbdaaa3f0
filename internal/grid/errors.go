package grid

import "fmt"

// ConfigurationError reports a missing or invalid process-wide grid constant.
// It is fatal: the run cannot produce spatially comparable grids without a
// fixed extent and resolution.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("grid: configuration error: %s %s", e.Field, e.Reason)
}
