// backend_test.go - Tests fuer Prepare/Run des Backend-Adapters
// Testet Geraetepruefung vor jeder Engine-Beruehrung, den Happy Path
// durch Prepare und Run, die Fehlerklassifikation und den
// Representative-Lebenszyklus.
package ml_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zimond/wonnx/ml"
	"github.com/zimond/wonnx/ml/mltest"
	"github.com/zimond/wonnx/onnx"
)

func reluGraph() *onnx.Graph {
	return &onnx.Graph{
		Name: "SingleRelu",
		Inputs: []onnx.ValueInfo{
			{Name: "x", Type: onnx.TypeFloat, Dims: []onnx.Dim{{Value: 1}, {Value: 3}}},
		},
		Outputs: []onnx.ValueInfo{
			{Name: "y", Type: onnx.TypeFloat, Dims: []onnx.Dim{{Value: 1}, {Value: 3}}},
		},
		Nodes: []onnx.Node{{OpType: "Relu", Inputs: []string{"x"}, Outputs: []string{"y"}}},
	}
}

func TestSupportsDevice(t *testing.T) {
	backend := ml.NewBackend(&mltest.Engine{})

	assert.True(t, backend.SupportsDevice(ml.DeviceCPU))
	assert.False(t, backend.SupportsDevice(ml.DeviceGPU))
	assert.False(t, backend.SupportsDevice(ml.Device("TPU")))
}

func TestPrepareUnsupportedDeviceBeforeEngine(t *testing.T) {
	engine := &mltest.Engine{}
	backend := ml.NewBackend(engine)

	_, err := backend.Prepare(reluGraph(), ml.DeviceGPU)

	var devErr *ml.UnsupportedDeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, ml.DeviceGPU, devErr.Device)
	// Die Engine darf vor der Geraetepruefung nicht angefasst werden.
	assert.Zero(t, engine.LoadCalls)
}

func TestPrepareAndRun(t *testing.T) {
	engine := &mltest.Engine{}
	backend := ml.NewBackend(engine)

	rep, err := backend.Prepare(reluGraph(), ml.DeviceCPU)
	require.NoError(t, err)
	require.Equal(t, ml.StatePrepared, rep.State())
	assert.NotZero(t, rep.ID)
	assert.Equal(t, []string{"x"}, rep.Inputs())
	assert.Equal(t, []string{"y"}, rep.Outputs())

	dims, ok := rep.OutputShape("y")
	require.True(t, ok)
	assert.Equal(t, []int64{1, 3}, dims)

	outs, err := rep.Run([]ml.Value{[]float32{-1, 0, 2}})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, []int{1, 3}, []int(outs[0].Shape()))
	assert.Equal(t, ml.StateCompleted, rep.State())

	require.NoError(t, rep.Close())
	require.Len(t, engine.Sessions, 1)
	assert.True(t, engine.Sessions[0].Closed)
}

func TestPrepareMalformedGraph(t *testing.T) {
	backend := ml.NewBackend(&mltest.Engine{})

	g := reluGraph()
	g.Nodes[0].Inputs = []string{"missing"}

	_, err := backend.Prepare(g, ml.DeviceCPU)
	assert.ErrorIs(t, err, onnx.ErrMalformed)
}

func TestPrepareEngineRejection(t *testing.T) {
	engine := &mltest.Engine{UnsupportedOps: []string{"Relu"}}
	backend := ml.NewBackend(engine)

	_, err := backend.Prepare(reluGraph(), ml.DeviceCPU)

	var loadErr *ml.LoadError
	require.ErrorAs(t, err, &loadErr)
	// Ein abgelehnter Operator ist kein fehlerhafter Graph.
	assert.NotErrorIs(t, err, onnx.ErrMalformed)
	assert.Equal(t, 1, engine.LoadCalls)
}

func TestPrepareCoverageViolation(t *testing.T) {
	// FancyCustomOp bekommt von der Inferenz nur eine offene Shape; bei
	// einem safelisted Modellnamen muss das als CoverageError auffallen.
	g := reluGraph()
	g.Nodes[0].OpType = "FancyCustomOp"
	g.Outputs[0].Dims = nil

	backend := ml.NewBackend(&mltest.Engine{}, ml.WithCoverage(ml.NewCoveragePolicy("SingleRelu")))

	_, err := backend.Prepare(g, ml.DeviceCPU)
	var coverage *ml.CoverageError
	require.ErrorAs(t, err, &coverage)
	assert.Equal(t, "SingleRelu", coverage.Model)
}

func TestRunAfterClose(t *testing.T) {
	backend := ml.NewBackend(&mltest.Engine{})

	rep, err := backend.Prepare(reluGraph(), ml.DeviceCPU)
	require.NoError(t, err)
	require.NoError(t, rep.Close())

	_, err = rep.Run([]ml.Value{[]float32{1, 2, 3}})
	var sessionErr *ml.SessionError
	assert.ErrorAs(t, err, &sessionErr)
}

func TestRunSessionFailure(t *testing.T) {
	engine := &mltest.Engine{
		RunFunc: func(map[string][]float32) (map[string][]float32, error) {
			return nil, errors.New("device lost")
		},
	}
	backend := ml.NewBackend(engine)

	rep, err := backend.Prepare(reluGraph(), ml.DeviceCPU)
	require.NoError(t, err)
	defer rep.Close()

	_, err = rep.Run([]ml.Value{[]float32{1, 2, 3}})
	var sessionErr *ml.SessionError
	require.ErrorAs(t, err, &sessionErr)
	assert.Equal(t, ml.StateFailed, rep.State())
}
