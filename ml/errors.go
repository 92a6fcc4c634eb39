// errors.go - Fehlerarten des Adapters
// Enthält: UnsupportedDeviceError, CoverageError, LoadError,
// SessionError und ShapeMismatchError. Jede Art bleibt beim Propagieren
// unterscheidbar; nichts wird zu einem generischen Fehler zusammengefasst.
package ml

import "fmt"

// UnsupportedDeviceError is returned by Prepare before any other work when
// the requested device is not the supported CPU-class device.
type UnsupportedDeviceError struct {
	Device Device
}

func (e *UnsupportedDeviceError) Error() string {
	return fmt.Sprintf("unsupported device %q", string(e.Device))
}

// CoverageError reports that a safelisted model's outputs are incompletely
// annotated. It is a self-check of the adapter's own shape-coverage
// guarantee, not of engine behavior, and fails the enclosing test.
type CoverageError struct {
	Model  string
	Output string
	Reason string
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("coverage violation in model %q: output %q %s", e.Model, e.Output, e.Reason)
}

// LoadError wraps an engine's refusal to load a graph. Unimplemented
// operators land here; callers classify these as "unsupported" rather than
// as malformed graphs.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return "engine load: " + e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

// SessionError wraps a failure from Session.Run with the cause preserved.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string { return "engine run: " + e.Err.Error() }
func (e *SessionError) Unwrap() error { return e.Err }

// ShapeMismatchError reports an element-count mismatch between a flat buffer
// and its target shape. Buffers are never truncated or padded to fit.
type ShapeMismatchError struct {
	Name     string
	Elements int
	Shape    []int64
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("tensor %q: %d elements do not fit shape %v", e.Name, e.Elements, e.Shape)
}
