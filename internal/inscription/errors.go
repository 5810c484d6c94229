package inscription

import "fmt"

// ValidationError means the operation descriptor itself is wrong: unknown
// op, missing or extra fields, or a field of the wrong shape.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid inscription: %s", e.Reason)
	}
	return fmt.Sprintf("invalid inscription field %q: %s", e.Field, e.Reason)
}

// MalformedPayloadError means a rendered payload cannot be read back.
type MalformedPayloadError struct {
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload: %s", e.Reason)
}
