package geometry

import "fmt"

// A ConfigurationError reports geometry inputs that cannot describe a cache.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func newConfigError(field string, value any, reason string) error {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid cache geometry: %s=%v %s",
		e.Field, e.Value, e.Reason)
}
