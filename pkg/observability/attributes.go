package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	AttrOperation     = attribute.Key("igcatalog.operation")
	AttrErrorType     = attribute.Key("error.type")
	AttrStoreOp       = attribute.Key("igcatalog.sync.op")
	AttrStoreOpOK     = attribute.Key("igcatalog.sync.op_ok")
	AttrStoreType     = attribute.Key("igcatalog.store.type")
	AttrManifestCount = attribute.Key("igcatalog.catalog.manifests")
	AttrObjectCount   = attribute.Key("igcatalog.catalog.objects")
	AttrSyncMode      = attribute.Key("igcatalog.sync.mode")
	AttrSyncRunID     = attribute.Key("igcatalog.sync.run_id")
	AttrValidationOK  = attribute.Key("igcatalog.validation.successful")
)

// CatalogLoad returns attributes describing a catalog build.
func CatalogLoad(storeType string) []attribute.KeyValue {
	return []attribute.KeyValue{AttrStoreType.String(storeType)}
}

// SyncRun returns attributes describing a reconciliation run.
func SyncRun(mode, runID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrSyncMode.String(mode),
		AttrSyncRunID.String(runID),
	}
}

// AddSpanEvent adds an event to the span in ctx.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}
