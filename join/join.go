// ABOUTME: Top-level join of two memory environments into one over-approximation
// ABOUTME: Pairs globals and stack frames, then joins the sub-graphs reachable from them

package join

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/prateek/heapshape/graph"
	"github.com/prateek/heapshape/internal/metrics"
)

// Result is the outcome of a join. When Defined is false, Reason says why
// the inputs could not be joined and Memory is nil.
type Result struct {
	Defined bool
	Status  Status
	Memory  *graph.Memory
	Reason  string
}

// Option configures a join
type Option func(*options)

type options struct {
	log    *slog.Logger
	checks bool
}

// WithLogger sets the logger join decisions are reported to at debug level
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithChecks enables the field-alignment postcondition check after every alignment
func WithChecks(enabled bool) Option {
	return func(o *options) {
		o.checks = enabled
	}
}

// joiner carries the state of one join invocation
type joiner struct {
	smg1, smg2 *graph.Memory
	dest       *graph.Memory
	m1, m2     *Mapping
	status     Status
	checks     bool
	log        *slog.Logger
}

func newJoiner(smg1, smg2 *graph.Memory, o options) *joiner {
	dest := graph.NewMemory()
	j := &joiner{
		smg1:   smg1,
		smg2:   smg2,
		dest:   dest,
		m1:     NewMapping(smg1, dest),
		m2:     NewMapping(smg2, dest),
		status: Equal,
		checks: o.checks,
		log:    o.log,
	}
	for _, m := range []*Mapping{j.m1, j.m2} {
		m.MapObject(graph.NullObject, graph.NullObject)
		m.MapValue(graph.NullValue, graph.NullValue)
	}
	return j
}

func (j *joiner) update(s Status) {
	j.status = j.status.Combine(s)
}

// Join computes a memory graph over-approximating both a and b. The inputs
// are never modified. A nil error with Defined false means the graphs are
// semantically unjoinable; an error means the join was aborted.
func Join(a, b *graph.Memory, opts ...Option) (res Result, err error) {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	defer func() {
		metrics.JoinDuration.Observe(time.Since(start).Seconds())
		switch {
		case err != nil:
			metrics.Joins.WithLabelValues(metrics.OutcomeError, "none").Inc()
		case res.Defined:
			metrics.Joins.WithLabelValues(metrics.OutcomeDefined, res.Status.String()).Inc()
		default:
			metrics.Joins.WithLabelValues(metrics.OutcomeUndefined, "none").Inc()
		}
	}()

	j := newJoiner(a.Copy(), b.Copy(), o)
	err = j.guarded(func() error {
		res, err = j.run()
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// guarded runs fn and turns an invariant panic raised inside it into an error
func (j *joiner) guarded(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = graph.AsInvariantError(r)
		}
	}()
	return fn()
}

func (j *joiner) run() (Result, error) {
	if reason := j.pairEnvironment(); reason != "" {
		j.log.Debug("join undefined", "reason", reason)
		return Result{Reason: reason}, nil
	}

	reason, err := j.joinRoots()
	if err != nil {
		return Result{}, err
	}
	if reason != "" {
		j.log.Debug("join undefined", "reason", reason)
		return Result{Reason: reason}, nil
	}

	j.log.Debug("join defined", "status", j.status, "objects", j.dest.NumObjects())
	return Result{Defined: true, Status: j.status, Memory: j.dest}, nil
}

// checkMappings panics when a mapping is used with graphs it was not built for
func (j *joiner) checkMappings() {
	if !j.m1.Connects(j.smg1, j.dest) || !j.m2.Connects(j.smg2, j.dest) {
		panic(&graph.InvariantError{Msg: "node mapping used with foreign graphs"})
	}
}

// pairEnvironment checks that both environments declare the same variables
// and creates their destination regions. It returns a non-empty reason when
// the environments cannot be paired.
func (j *joiner) pairEnvironment() string {
	names := j.smg1.GlobalNames()
	if !slices.Equal(names, j.smg2.GlobalNames()) {
		return AsymmetricGlobalsUnjoinable
	}
	for _, name := range names {
		g1, _ := j.smg1.Global(name)
		g2, _ := j.smg2.Global(name)
		size, ok := j.pairSize(g1, g2)
		if !ok {
			return fmt.Sprintf("global %q has sizes %d and %d", name, j.smg1.Object(g1).Size, j.smg2.Object(g2).Size)
		}
		j.mapRoot(g1, g2, j.dest.AddGlobal(name, size))
	}

	frames1, frames2 := j.smg1.Frames(), j.smg2.Frames()
	if len(frames1) != len(frames2) {
		return fmt.Sprintf("stack depths %d and %d differ", len(frames1), len(frames2))
	}
	for i, f1 := range frames1 {
		f2 := frames2[i]
		locals := f1.LocalNames()
		if !slices.Equal(slices.Sorted(slices.Values(locals)), slices.Sorted(slices.Values(f2.LocalNames()))) {
			return fmt.Sprintf("frame %d declares different locals", i)
		}
		r1, hasRet1 := f1.Return()
		r2, hasRet2 := f2.Return()
		if hasRet1 != hasRet2 {
			return fmt.Sprintf("frame %d has a return object on one side only", i)
		}

		j.dest.PushFrame(f1.Function)
		for _, name := range locals {
			l1, _ := f1.Local(name)
			l2, _ := f2.Local(name)
			size, ok := j.pairSize(l1, l2)
			if !ok {
				return fmt.Sprintf("local %q in frame %d has different sizes", name, i)
			}
			j.mapRoot(l1, l2, j.dest.AddLocal(name, size))
		}
		if hasRet1 {
			size, ok := j.pairSize(r1, r2)
			if !ok {
				return fmt.Sprintf("return object of frame %d has different sizes", i)
			}
			j.mapRoot(r1, r2, j.dest.AddReturn(size))
		}
	}
	return ""
}

func (j *joiner) pairSize(obj1, obj2 graph.ObjID) (int, bool) {
	s1, s2 := j.smg1.Object(obj1).Size, j.smg2.Object(obj2).Size
	return s1, s1 == s2
}

func (j *joiner) mapRoot(obj1, obj2, dst graph.ObjID) {
	j.m1.MapObject(obj1, dst)
	j.m2.MapObject(obj2, dst)
}

// joinRoots joins the sub-graphs of every paired root: globals in name
// order, then frames from the outermost, locals before the return object
func (j *joiner) joinRoots() (string, error) {
	type pair struct {
		what       string
		obj1, obj2 graph.ObjID
	}
	var pairs []pair

	for _, name := range j.smg1.GlobalNames() {
		g1, _ := j.smg1.Global(name)
		g2, _ := j.smg2.Global(name)
		pairs = append(pairs, pair{"global " + name, g1, g2})
	}
	frames2 := j.smg2.Frames()
	for i, f1 := range j.smg1.Frames() {
		f2 := frames2[i]
		for _, name := range f1.LocalNames() {
			l1, _ := f1.Local(name)
			l2, _ := f2.Local(name)
			pairs = append(pairs, pair{"local " + name, l1, l2})
		}
		if r1, ok := f1.Return(); ok {
			r2, _ := f2.Return()
			pairs = append(pairs, pair{"return of " + f1.Function, r1, r2})
		}
	}

	for _, p := range pairs {
		dst, _ := j.m1.Object(p.obj1)
		ok, err := j.joinSubgraphs(p.obj1, p.obj2, dst)
		if err != nil {
			return "", err
		}
		if !ok {
			return p.what + " not joinable", nil
		}
	}
	return "", nil
}
