package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Mindburn-Labs/igcatalog/pkg/reconcile"
	"github.com/Mindburn-Labs/igcatalog/pkg/store"
)

// ErrMissingBucket is reported when an event names no bucket.
var ErrMissingBucket = errors.New("could not find implementation guide bucket")

// StoreFactory opens the store for the bucket an event names.
type StoreFactory func(ctx context.Context, bucket string) (store.Store, error)

// DesiredFunc returns the objects the store should hold.
type DesiredFunc func() ([]store.Object, error)

// Handler runs provisioning events.
type Handler struct {
	openStore StoreFactory
	desired   DesiredFunc
	notifier  Notifier
	opts      []reconcile.Option
	logger    *slog.Logger
}

// NewHandler creates a Handler. opts are passed to every reconciler.
func NewHandler(openStore StoreFactory, desired DesiredFunc, notifier Notifier, opts ...reconcile.Option) *Handler {
	return &Handler{
		openStore: openStore,
		desired:   desired,
		notifier:  notifier,
		opts:      opts,
		logger:    slog.Default().With("component", "lifecycle"),
	}
}

// Handle runs ev to completion and notifies the outcome. Notification
// failures are logged and never change the outcome.
func (h *Handler) Handle(ctx context.Context, ev Event) reconcile.Outcome {
	out := h.run(ctx, ev)
	if err := h.notifier.Notify(ctx, ev, out.Status, out.Message); err != nil {
		h.logger.ErrorContext(ctx, "failed to deliver provisioning response",
			"request_id", ev.RequestID,
			"status", string(out.Status),
			"error", err,
		)
	}
	return out
}

func (h *Handler) run(ctx context.Context, ev Event) reconcile.Outcome {
	mode, err := ev.RequestType.Mode()
	if err != nil {
		return failed(mode, err)
	}
	if ev.ResourceProperties.BucketName == "" {
		return failed(mode, ErrMissingBucket)
	}

	var desired []store.Object
	if mode != reconcile.ModeTeardown {
		if desired, err = h.desired(); err != nil {
			return failed(mode, err)
		}
	}

	s, err := h.openStore(ctx, ev.ResourceProperties.BucketName)
	if err != nil {
		return failed(mode, err)
	}
	if c, ok := s.(interface{ Close() error }); ok {
		defer func() { _ = c.Close() }()
	}

	h.logger.InfoContext(ctx, "handling provisioning event",
		"request_type", string(ev.RequestType),
		"bucket", ev.ResourceProperties.BucketName,
		"objects", len(desired),
	)
	return reconcile.New(s, h.opts...).Run(ctx, mode, desired)
}

func failed(mode reconcile.Mode, err error) reconcile.Outcome {
	return reconcile.Outcome{Mode: mode, Status: reconcile.StatusFailed, Message: err.Error(), Err: err}
}
