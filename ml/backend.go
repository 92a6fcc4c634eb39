// backend.go - Backend-Adapter: Geraetepruefung, Inferenz, Session-Aufbau
// Enthält: Device, Backend, NewBackend, SupportsDevice und Prepare.
// Prepare komponiert Shape-Inferenz, Coverage Gate und Engine-Load zu
// einem lauffaehigen Representative.
package ml

import (
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/zimond/wonnx/onnx"
)

// Device names the execution device requested by the harness.
type Device string

const (
	DeviceCPU Device = "CPU"
	DeviceGPU Device = "GPU"
)

// Backend bridges the conformance harness to an inference engine. It
// prepares one Representative per test case; it holds no per-case state and
// performs no internal parallelism.
type Backend struct {
	engine   Engine
	coverage CoveragePolicy
}

// Option configures a Backend.
type Option func(*Backend)

// WithCoverage installs the shape-coverage policy consulted during Prepare.
func WithCoverage(p CoveragePolicy) Option {
	return func(b *Backend) { b.coverage = p }
}

// NewBackend builds a backend over the given engine.
func NewBackend(engine Engine, opts ...Option) *Backend {
	b := &Backend{engine: engine}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SupportsDevice reports whether the backend can execute on the device.
// Only the CPU-class device is supported.
func (b *Backend) SupportsDevice(device Device) bool {
	return device == DeviceCPU
}

// PrepareModel decodes an opaque serialized graph and prepares it.
func (b *Backend) PrepareModel(model []byte, device Device) (*Representative, error) {
	g, err := onnx.Decode(model)
	if err != nil {
		return nil, err
	}
	return b.Prepare(g, device)
}

// Prepare turns a graph into a runnable representative:
// device check, shape inference, optional strict coverage check, then
// serialization and engine load. Each distinct failure kind propagates
// unchanged so the harness can classify it.
func (b *Backend) Prepare(g *onnx.Graph, device Device) (*Representative, error) {
	if !b.SupportsDevice(device) {
		return nil, &UnsupportedDeviceError{Device: device}
	}

	resolved, err := onnx.InferShapes(g)
	if err != nil {
		return nil, err
	}

	inputs := make([]string, len(resolved.Inputs))
	for i, vi := range resolved.Inputs {
		inputs[i] = vi.Name
	}
	outputs := make([]string, len(resolved.Outputs))
	shapes := orderedmap.New[string, []int64]()
	for i, vi := range resolved.Outputs {
		outputs[i] = vi.Name
		shapes.Set(vi.Name, vi.Shape())
	}

	if b.coverage.Enforce(resolved) {
		if err := b.coverage.Check(resolved); err != nil {
			return nil, err
		}
	}

	model, err := onnx.Encode(resolved)
	if err != nil {
		return nil, err
	}
	session, err := b.engine.Load(model)
	if err != nil {
		return nil, &LoadError{Err: err}
	}

	return &Representative{
		ID:      uuid.New(),
		inputs:  inputs,
		outputs: outputs,
		shapes:  shapes,
		session: session,
		state:   StatePrepared,
	}, nil
}
