package harness

import (
	"fmt"
)

// ConfigError reports configuration that cannot produce a runnable harness.
type ConfigError struct {
	// Variable is the missing environment variable, if any.
	Variable string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Variable == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: no %s environment variable provided", e.Reason, e.Variable)
}

// Remediation tells the user how to fix the problem.
func (e *ConfigError) Remediation() string {
	if e.Variable == "" {
		return ""
	}
	return fmt.Sprintf("Try prepending it to your test command: %s=... npm test", e.Variable)
}
