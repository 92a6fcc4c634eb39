// runner.go - Parametrisierte Ausfuehrung des Fall-Korpus
//
// Dieses Modul enthaelt den Runner:
// - Klassifiziert jeden Fall als Passed/Skipped/Unsupported/Failed
// - Jeder Fall bekommt seinen eigenen Representative (Sessions werden
//   nie geteilt); optionale Shards ueber errgroup
// - Ergebnisvergleich mit relativer Toleranz
package conformance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdevine/tensor"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/zimond/wonnx/envconfig"
	"github.com/zimond/wonnx/ml"
)

// Result classifies the outcome of one case.
type Result int

const (
	ResultPassed Result = iota
	ResultSkipped
	ResultUnsupported
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultPassed:
		return "passed"
	case ResultSkipped:
		return "skipped"
	case ResultUnsupported:
		return "unsupported"
	default:
		return "failed"
	}
}

// Outcome is the per-case verdict. Err is set for unsupported and failed
// cases and carries the originating error kind unchanged.
type Outcome struct {
	Case   string
	Result Result
	Err    error
}

// Report aggregates the outcomes of one run, in case order.
type Report struct {
	Outcomes []Outcome
}

// Count returns how many cases finished with the given result.
func (r *Report) Count(res Result) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Result == res {
			n++
		}
	}
	return n
}

// Failures returns the outcomes of failed cases.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Result == ResultFailed {
			out = append(out, o)
		}
	}
	return out
}

// Backend is the capability contract the runner needs: anything that can
// check a device and prepare a representative from opaque model bytes. The
// adapter's *ml.Backend satisfies it; no base type is required.
type Backend interface {
	PrepareModel(model []byte, device ml.Device) (*ml.Representative, error)
	SupportsDevice(device ml.Device) bool
}

// Runner drives the enumerable case records through a backend and
// classifies each outcome. The adapter itself stays silent; all visibility
// lives here.
type Runner struct {
	backend Backend
	policy  *Policy
	device  ml.Device
	rtol    float64
	shards  int
	logger  *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithDevice sets the device requested for every case (default CPU).
func WithDevice(d ml.Device) RunnerOption {
	return func(r *Runner) { r.device = d }
}

// WithRTol sets the relative tolerance for result comparison.
func WithRTol(rtol float64) RunnerOption {
	return func(r *Runner) { r.rtol = rtol }
}

// WithShards sets how many cases may run concurrently. Every case still
// gets its own representative and session.
func WithShards(n int) RunnerOption {
	return func(r *Runner) { r.shards = n }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner builds a runner over a backend and selection policy. Tolerance
// and shard count default to the environment configuration.
func NewRunner(backend Backend, policy *Policy, opts ...RunnerOption) *Runner {
	r := &Runner{
		backend: backend,
		policy:  policy,
		device:  ml.DeviceCPU,
		rtol:    envconfig.RTol(),
		shards:  int(envconfig.Shards()),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.shards < 1 {
		r.shards = 1
	}
	return r
}

// Run executes the cases and returns the aggregated report. The context
// bounds the whole run; the adapter itself imposes no timeouts.
func (r *Runner) Run(ctx context.Context, cases []Case) (*Report, error) {
	report := &Report{Outcomes: make([]Outcome, len(cases))}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.shards)
	for i, c := range cases {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report.Outcomes[i] = r.runCase(c)
			r.logger.Debug("conformance case finished", "case", c.Name, "result", report.Outcomes[i].Result.String())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func (r *Runner) runCase(c Case) Outcome {
	if !r.policy.Active(c.Name) {
		return Outcome{Case: c.Name, Result: ResultSkipped}
	}
	if !r.backend.SupportsDevice(r.device) {
		return Outcome{Case: c.Name, Result: ResultSkipped}
	}

	rep, err := r.backend.PrepareModel(c.Model, r.device)
	if err != nil {
		var loadErr *ml.LoadError
		if errors.As(err, &loadErr) {
			return Outcome{Case: c.Name, Result: ResultUnsupported, Err: err}
		}
		var devErr *ml.UnsupportedDeviceError
		if errors.As(err, &devErr) {
			// The corpus harness skips devices a backend does not claim.
			return Outcome{Case: c.Name, Result: ResultSkipped, Err: err}
		}
		return Outcome{Case: c.Name, Result: ResultFailed, Err: err}
	}
	defer rep.Close()
	r.logger.Debug("prepared representative", "case", c.Name, "rep", rep.ID)

	outs, err := rep.Run(c.Inputs)
	if err != nil {
		return Outcome{Case: c.Name, Result: ResultFailed, Err: err}
	}

	if err := r.compare(c, outs); err != nil {
		return Outcome{Case: c.Name, Result: ResultFailed, Err: err}
	}
	return Outcome{Case: c.Name, Result: ResultPassed}
}

func (r *Runner) compare(c Case, outs []*tensor.Dense) error {
	if c.WantDims != nil {
		if len(c.WantDims) != len(outs) {
			return fmt.Errorf("case %s: got %d outputs, want %d", c.Name, len(outs), len(c.WantDims))
		}
		for i, dims := range c.WantDims {
			shape := outs[i].Shape()
			if len(shape) != len(dims) {
				return fmt.Errorf("case %s output %d: got shape %v, want %v", c.Name, i, shape, dims)
			}
			for j, d := range dims {
				if int64(shape[j]) != d {
					return fmt.Errorf("case %s output %d: got shape %v, want %v", c.Name, i, shape, dims)
				}
			}
		}
	}
	if c.Want != nil {
		if len(c.Want) != len(outs) {
			return fmt.Errorf("case %s: got %d outputs, want %d", c.Name, len(outs), len(c.Want))
		}
		for i, want := range c.Want {
			got, ok := outs[i].Data().([]float32)
			if !ok {
				return fmt.Errorf("case %s output %d: unexpected element type %T", c.Name, i, outs[i].Data())
			}
			if len(got) != len(want) {
				return fmt.Errorf("case %s output %d: got %d values, want %d", c.Name, i, len(got), len(want))
			}
			if !floats.EqualApprox(widen(want), widen(got), r.rtol) {
				return fmt.Errorf("case %s output %d: values outside tolerance %v", c.Name, i, r.rtol)
			}
		}
	}
	return nil
}

func widen(s []float32) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out
}
