package infoflow

import "fmt"

// ConfigurationError reports an invalid analysis configuration: a bad
// mode and parameter combination, an out-of-range minimum weight or a
// boolean name the policy does not declare.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return e.Reason }

// UnknownTypeError reports a source, target or excluded name that does
// not exist in the policy.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("type %q does not exist in the policy", e.Name)
}

// InvalidDepthError reports a non-positive depth limit for bounded path
// search.
type InvalidDepthError struct {
	Depth int
}

func (e *InvalidDepthError) Error() string {
	return fmt.Sprintf("depth limit must be positive, got %d", e.Depth)
}
