package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Mindburn-Labs/igcatalog/pkg/manifest"
	"github.com/Mindburn-Labs/igcatalog/pkg/observability"
	"github.com/Mindburn-Labs/igcatalog/pkg/store"
)

// Partition splits a snapshot into manifest objects and resource objects,
// preserving order.
func Partition(objects []store.Object) (manifests, resources []store.Object) {
	for _, obj := range objects {
		if manifest.IsManifestKey(obj.Key) {
			manifests = append(manifests, obj)
		} else {
			resources = append(resources, obj)
		}
	}
	return manifests, resources
}

// ParseManifests parses every manifest object, failing on the first error.
func ParseManifests(objects []store.Object) ([]*manifest.Manifest, error) {
	out := make([]*manifest.Manifest, 0, len(objects))
	for _, obj := range objects {
		m, err := manifest.Parse(obj.Key, obj.Content)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Loader reads the current store contents and resolves them into a Catalog.
type Loader struct {
	store     store.Store
	storeType string
	resolver  *Resolver
	obs       *observability.Provider
	logger    *slog.Logger
}

// NewLoader creates a Loader. A nil provider disables telemetry.
func NewLoader(s store.Store, storeType string, r *Resolver, obs *observability.Provider) *Loader {
	if obs == nil {
		obs = observability.Disabled()
	}
	return &Loader{
		store:     s,
		storeType: storeType,
		resolver:  r,
		obs:       obs,
		logger:    slog.Default().With("component", "catalog"),
	}
}

// Load lists the store, downloads every object, and resolves the catalog.
func (l *Loader) Load(ctx context.Context) (cat *Catalog, err error) {
	ctx, finish := l.obs.TrackOperation(ctx, "catalog.load", observability.CatalogLoad(l.storeType)...)
	defer func() { finish(err) }()

	objects, err := store.Snapshot(ctx, l.store)
	if err != nil {
		return nil, fmt.Errorf("failed to read implementation guides: %w", err)
	}
	manifestObjs, resourceObjs := Partition(objects)
	l.logger.InfoContext(ctx, "downloaded implementation guide objects",
		"manifests", len(manifestObjs),
		"resources", len(resourceObjs),
	)
	observability.AddSpanEvent(ctx, "store.snapshot",
		observability.AttrManifestCount.Int(len(manifestObjs)),
		observability.AttrObjectCount.Int(len(resourceObjs)),
	)

	manifests, err := ParseManifests(manifestObjs)
	if err != nil {
		return nil, err
	}

	cat, err = l.resolver.Resolve(ctx, manifests, resourceObjs)
	if err != nil {
		return nil, err
	}
	l.obs.RecordCatalog(ctx, l.storeType, cat.Size())
	l.logger.InfoContext(ctx, "catalog resolved", "resources", cat.Size())
	return cat, nil
}
