package internal

import "fmt"

// ConfigError reports a missing or contradictory configuration field.
// It is always fatal and raised before any mutating call.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ParseError reports a malformed expiration timestamp. A silent misparse
// would corrupt expiry decisions, so this is fatal.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse expiration %q: %s", e.Input, e.Reason)
}

// ResourceMissingError reports a key or bucket that does not exist while
// safe mode forbids creating it.
type ResourceMissingError struct {
	Kind string // "kms key", "kms alias" or "bucket"
	Name string
}

func (e *ResourceMissingError) Error() string {
	return fmt.Sprintf("%s %q does not exist (safe mode forbids creation)", e.Kind, e.Name)
}

// ProvisioningError reports a failed creation, import, alias or policy
// call. Cloud resources are not transactional, so nothing is rolled back.
type ProvisioningError struct {
	Op    string
	Cause error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed during %s: %v", e.Op, e.Cause)
}

func (e *ProvisioningError) Unwrap() error { return e.Cause }
