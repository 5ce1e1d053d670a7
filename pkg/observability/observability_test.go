package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "igcatalog", config.ServiceName)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
	require.Equal(t, 1.0, config.SampleRate)
	require.False(t, config.Enabled)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NotNil(t, p.Tracer())
}

func TestTrackOperation(t *testing.T) {
	p := Disabled()

	ctx, finish := p.TrackOperation(context.Background(), "catalog.load", CatalogLoad("memory")...)
	require.NotNil(t, ctx)
	AddSpanEvent(ctx, "manifests.parsed", AttrManifestCount.Int(2))
	time.Sleep(time.Millisecond)
	finish(nil)
}

func TestTrackOperationWithError(t *testing.T) {
	p := Disabled()
	_, finish := p.TrackOperation(context.Background(), "sync.run", SyncRun("update", "run-1")...)
	finish(errors.New("s3 put failed"))
}

func TestRecordersDisabled(t *testing.T) {
	p := Disabled()
	ctx := context.Background()
	p.RecordError(ctx, "catalog.load", errors.New("boom"))
	p.RecordError(ctx, "catalog.load", nil)
	p.RecordCatalog(ctx, "memory", 3)
	p.RecordStoreOp(ctx, "put", nil)
	p.RecordValidation(ctx, false)
}

func TestNewNilConfig(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "igcatalog", p.config.ServiceName)
	require.False(t, p.config.Enabled)
}

func TestOperationAttribute(t *testing.T) {
	kv := AttrOperation.String("reconcile.run")
	require.Equal(t, attribute.Key("igcatalog.operation"), kv.Key)
}

func TestSyncRunAttributes(t *testing.T) {
	attrs := SyncRun("teardown", "run-42")
	require.Len(t, attrs, 2)
	require.Equal(t, "igcatalog.sync.mode", string(attrs[0].Key))
	require.Equal(t, "run-42", attrs[1].Value.AsString())
}

func TestShutdownDisabled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, Disabled().Shutdown(ctx))
}
