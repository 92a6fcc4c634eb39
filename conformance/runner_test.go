// runner_test.go - Tests fuer den Konformitaets-Runner
// Testet die Klassifikation (Passed/Skipped/Unsupported/Failed), die
// Toleranzvergleiche und die geshardete Ausfuehrung.
package conformance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zimond/wonnx/ml"
	"github.com/zimond/wonnx/ml/mltest"
)

func TestRunnerBuiltinCorpus(t *testing.T) {
	backend := ml.NewBackend(&mltest.Engine{}, ml.WithCoverage(DefaultCoverage()))
	runner := NewRunner(backend, DefaultPolicy())

	report, err := runner.Run(context.Background(), BuiltinCases())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, len(BuiltinCases()))

	// reduce_sum ist zurueckgehalten, LSTM von keinem Muster erfasst.
	assert.Equal(t, 2, report.Count(ResultSkipped))
	assert.Equal(t, 0, report.Count(ResultUnsupported))
	assert.Equal(t, 0, report.Count(ResultFailed))
	assert.Equal(t, len(BuiltinCases())-2, report.Count(ResultPassed))

	for _, o := range report.Outcomes {
		switch o.Case {
		case "test_reduce_sum_default", "test_lstm_defaults":
			assert.Equal(t, ResultSkipped, o.Result, o.Case)
		default:
			assert.Equal(t, ResultPassed, o.Result, o.Case)
		}
	}
}

func TestRunnerClassifiesMissingOps(t *testing.T) {
	// Eine Engine ohne Conv-Unterstuetzung: der Conv-Fall ist
	// "unsupported", kein harter Fehler.
	backend := ml.NewBackend(&mltest.Engine{UnsupportedOps: []string{"Conv"}})
	runner := NewRunner(backend, DefaultPolicy())

	report, err := runner.Run(context.Background(), BuiltinCases())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Count(ResultUnsupported))
	assert.Equal(t, 0, report.Count(ResultFailed))
	for _, o := range report.Outcomes {
		if o.Case == "test_conv_basic" {
			assert.Equal(t, ResultUnsupported, o.Result)
			var loadErr *ml.LoadError
			assert.ErrorAs(t, o.Err, &loadErr)
		}
	}
}

func TestRunnerFailsOnBadValues(t *testing.T) {
	backend := ml.NewBackend(&mltest.Engine{})
	runner := NewRunner(backend, DefaultPolicy(), WithRTol(0.001))

	cases := []Case{{
		Name:   "test_relu_default",
		Model:  BuiltinCases()[0].Model,
		Inputs: []ml.Value{[]float32{-1, 0, 2}},
		// Die Stub-Engine liefert 1..N; das hier liegt weit daneben.
		Want: [][]float32{{100, 200, 300}},
	}}
	report, err := runner.Run(context.Background(), cases)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Count(ResultFailed))
	require.Len(t, report.Failures(), 1)
	assert.Equal(t, "test_relu_default", report.Failures()[0].Case)
}

func TestRunnerMalformedModelFails(t *testing.T) {
	backend := ml.NewBackend(&mltest.Engine{})
	runner := NewRunner(backend, DefaultPolicy())

	report, err := runner.Run(context.Background(), []Case{{
		Name:  "test_relu_broken",
		Model: []byte("not a model"),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(ResultFailed))
}

func TestRunnerSharded(t *testing.T) {
	// Jeder Fall bekommt seinen eigenen Representative; Shards aendern
	// nur die Gleichzeitigkeit, nicht das Ergebnis.
	engine := &mltest.Engine{}
	backend := ml.NewBackend(engine, ml.WithCoverage(DefaultCoverage()))
	runner := NewRunner(backend, DefaultPolicy(), WithShards(4))

	report, err := runner.Run(context.Background(), BuiltinCases())
	require.NoError(t, err)

	assert.Equal(t, len(BuiltinCases())-2, report.Count(ResultPassed))
	// Eine Session pro aktivem Fall, alle geschlossen.
	require.Len(t, engine.Sessions, len(BuiltinCases())-2)
	for _, s := range engine.Sessions {
		assert.True(t, s.Closed)
	}
}

func TestRunnerSkipsUnclaimedDevice(t *testing.T) {
	engine := &mltest.Engine{}
	backend := ml.NewBackend(engine)
	runner := NewRunner(backend, DefaultPolicy(), WithDevice(ml.DeviceGPU))

	report, err := runner.Run(context.Background(), BuiltinCases())
	require.NoError(t, err)

	assert.Equal(t, len(BuiltinCases()), report.Count(ResultSkipped))
	assert.Zero(t, engine.LoadCalls)
}

func TestRunnerContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := ml.NewBackend(&mltest.Engine{})
	runner := NewRunner(backend, DefaultPolicy())

	_, err := runner.Run(ctx, BuiltinCases())
	assert.Error(t, err)
}
