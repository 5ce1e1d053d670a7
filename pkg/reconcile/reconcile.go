package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Mindburn-Labs/igcatalog/pkg/observability"
	"github.com/Mindburn-Labs/igcatalog/pkg/store"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// StoreOperationError reports the store call that aborted a run.
type StoreOperationError struct {
	Op  OpKind
	Key string
	Err error
}

func (e *StoreOperationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s failed: %v", e.Op, e.Key, e.Err)
}

func (e *StoreOperationError) Unwrap() error { return e.Err }

// Outcome describes a finished run. On failure, Applied lists the operations
// that completed and remain applied; Pending counts those never attempted,
// including the one that failed.
type Outcome struct {
	RunID   string `json:"runId"`
	Mode    Mode   `json:"mode"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Applied []Op   `json:"applied"`
	Pending int    `json:"pending"`
	Err     error  `json:"-"`
}

// Partial reports whether a failed run left some operations applied.
func (o Outcome) Partial() bool {
	return o.Status == StatusFailed && len(o.Applied) > 0
}

// Reconciler applies plans to a store.
type Reconciler struct {
	store   store.Store
	limiter *rate.Limiter
	obs     *observability.Provider
	logger  *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRate paces store mutations to opsPerSecond. Zero or less disables
// pacing.
func WithRate(opsPerSecond float64) Option {
	return func(r *Reconciler) {
		if opsPerSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(opsPerSecond), 1)
		}
	}
}

// WithObservability records runs on p.
func WithObservability(p *observability.Provider) Option {
	return func(r *Reconciler) {
		if p != nil {
			r.obs = p
		}
	}
}

// New creates a Reconciler for s.
func New(s store.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  s,
		obs:    observability.Disabled(),
		logger: slog.Default().With("component", "reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Plan lists the store and computes the plan without applying it. Populate
// never deletes, so it does not list.
func (r *Reconciler) Plan(ctx context.Context, mode Mode, desired []store.Object) (Plan, error) {
	if mode == ModePopulate {
		return ComputePlan(mode, desired, nil), nil
	}
	current, err := r.store.ListKeys(ctx)
	if err != nil {
		return Plan{}, &StoreOperationError{Op: OpList, Err: err}
	}
	return ComputePlan(mode, desired, current), nil
}

// Run lists the store, computes the plan for mode and applies it: deletes
// first, then puts. The first failing operation stops the run. Nothing is
// rolled back and nothing is retried.
func (r *Reconciler) Run(ctx context.Context, mode Mode, desired []store.Object) (out Outcome) {
	out = Outcome{RunID: uuid.NewString(), Mode: mode}
	logger := r.logger.With("run_id", out.RunID, "mode", string(mode))

	ctx, finish := r.obs.TrackOperation(ctx, "reconcile.run", observability.SyncRun(string(mode), out.RunID)...)
	defer func() { finish(out.Err) }()

	plan, err := r.Plan(ctx, mode, desired)
	if err != nil {
		return r.fail(ctx, logger, out, 0, err)
	}
	logger.InfoContext(ctx, "reconcile plan computed", "puts", len(plan.Puts), "deletes", len(plan.Deletes))

	ops := plan.Ops()
	puts := make(map[string][]byte, len(plan.Puts))
	for _, obj := range plan.Puts {
		puts[obj.Key] = obj.Content
	}

	for i, op := range ops {
		if err := r.wait(ctx); err != nil {
			return r.fail(ctx, logger, out, len(ops)-i, err)
		}
		err := r.apply(ctx, op, puts[op.Key])
		r.obs.RecordStoreOp(ctx, string(op.Kind), err)
		if err != nil {
			return r.fail(ctx, logger, out, len(ops)-i, err)
		}
		out.Applied = append(out.Applied, op)
	}

	out.Status = StatusSuccess
	out.Message = fmt.Sprintf("%s complete: %d deleted, %d uploaded", mode, len(plan.Deletes), len(plan.Puts))
	logger.InfoContext(ctx, "reconcile finished", "applied", len(out.Applied))
	return out
}

func (r *Reconciler) apply(ctx context.Context, op Op, content []byte) error {
	var err error
	switch op.Kind {
	case OpDelete:
		err = r.store.Delete(ctx, op.Key)
	case OpPut:
		err = r.store.Put(ctx, op.Key, content)
	}
	if err != nil {
		return &StoreOperationError{Op: op.Kind, Key: op.Key, Err: err}
	}
	return nil
}

func (r *Reconciler) wait(ctx context.Context) error {
	if r.limiter == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

func (r *Reconciler) fail(ctx context.Context, logger *slog.Logger, out Outcome, pending int, err error) Outcome {
	out.Status = StatusFailed
	out.Err = err
	out.Pending = pending
	out.Message = err.Error()
	logger.ErrorContext(ctx, "reconcile failed",
		"error", err,
		"applied", len(out.Applied),
		"pending", pending,
	)
	return out
}
