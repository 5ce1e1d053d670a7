package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Mindburn-Labs/igcatalog/pkg/fhir"
	"github.com/Mindburn-Labs/igcatalog/pkg/manifest"
	"github.com/Mindburn-Labs/igcatalog/pkg/store"
)

// MatchPolicy decides how an entry's expected key is matched to objects.
type MatchPolicy int

const (
	// MatchStrict prefers an exact key, accepts a single prefix match, and
	// fails with AmbiguousResourceError on several prefix matches.
	MatchStrict MatchPolicy = iota
	// MatchFirst takes the first prefix match in key order.
	MatchFirst
)

// AliasPolicy decides what happens when two canonical urls share an alias.
type AliasPolicy int

const (
	// AliasOverride lets the later registration win and logs the collision.
	AliasOverride AliasPolicy = iota
	// AliasStrict fails with AliasCollisionError.
	AliasStrict
)

// Options configures a Resolver.
type Options struct {
	// Allowed restricts the resolved types. Empty means every fhir.ResourceType.
	Allowed []fhir.ResourceType
	Version fhir.SchemaVersion
	Parser  fhir.Parser
	Match   MatchPolicy
	Alias   AliasPolicy
}

// Resolver builds a Catalog from manifests and the objects they reference.
type Resolver struct {
	allowed map[fhir.ResourceType]bool
	version fhir.SchemaVersion
	parser  fhir.Parser
	match   MatchPolicy
	alias   AliasPolicy
	logger  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	allowed := opts.Allowed
	if len(allowed) == 0 {
		allowed = fhir.AllResourceTypes
	}
	r := &Resolver{
		allowed: make(map[fhir.ResourceType]bool, len(allowed)),
		version: opts.Version,
		parser:  opts.Parser,
		match:   opts.Match,
		alias:   opts.Alias,
		logger:  slog.Default().With("component", "catalog"),
	}
	for _, t := range allowed {
		r.allowed[t] = true
	}
	if r.version == "" {
		r.version = fhir.R4
	}
	if r.parser == nil {
		r.parser = fhir.JSONParser{}
	}
	return r
}

// objectIndex answers exact and prefix queries over a sorted key set.
type objectIndex struct {
	keys    []string
	content map[string][]byte
}

func newObjectIndex(objects []store.Object) *objectIndex {
	idx := &objectIndex{
		keys:    make([]string, 0, len(objects)),
		content: make(map[string][]byte, len(objects)),
	}
	for _, obj := range objects {
		if _, dup := idx.content[obj.Key]; !dup {
			idx.keys = append(idx.keys, obj.Key)
		}
		idx.content[obj.Key] = obj.Content
	}
	sort.Strings(idx.keys)
	return idx
}

// withPrefix returns every key starting with prefix, in key order.
func (idx *objectIndex) withPrefix(prefix string) []string {
	i := sort.SearchStrings(idx.keys, prefix)
	var out []string
	for ; i < len(idx.keys) && strings.HasPrefix(idx.keys[i], prefix); i++ {
		out = append(out, idx.keys[i])
	}
	return out
}

// Resolve resolves every allowed entry of every manifest. It stops at the
// first error and never returns a partial catalog.
func (r *Resolver) Resolve(ctx context.Context, manifests []*manifest.Manifest, objects []store.Object) (*Catalog, error) {
	idx := newObjectIndex(objects)
	cat := newCatalog()
	owners := make(map[fhir.ResourceType]map[string]string, len(fhir.AllResourceTypes))
	for _, t := range fhir.AllResourceTypes {
		owners[t] = make(map[string]string)
	}

	for _, m := range manifests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, entry := range m.Entries {
			rt, ok := fhir.ParseResourceType(entry.ResourceType)
			if !ok || !r.allowed[rt] {
				continue
			}

			key, err := r.locate(idx, m.SourceKey, entry)
			if err != nil {
				return nil, err
			}
			r.logger.DebugContext(ctx, "loading resource", "key", key, "type", rt.String())

			res, err := r.parser.Parse(rt, r.version, idx.content[key])
			if err != nil {
				return nil, fmt.Errorf("resource %s: %w", key, err)
			}
			if res.TypeName() != rt.String() {
				return nil, &TypeMismatchError{Key: key, Declared: rt, Actual: res.TypeName()}
			}
			if strings.TrimSpace(res.URL()) == "" {
				return nil, &MissingURLError{Key: key, Type: rt}
			}

			if err := r.register(ctx, cat, owners[rt], rt, res); err != nil {
				return nil, err
			}
		}
	}
	return cat, nil
}

func (r *Resolver) locate(idx *objectIndex, manifestKey string, entry manifest.Entry) (string, error) {
	expected := manifest.EntryKey(manifestKey, entry.Filename)
	candidates := idx.withPrefix(expected)

	switch {
	case len(candidates) == 0:
		return "", &MissingResourceError{Manifest: manifestKey, Filename: entry.Filename, ExpectedKey: expected}
	case len(candidates) == 1:
		return candidates[0], nil
	}

	// The exact key, when present, sorts first among its prefix matches.
	if candidates[0] == expected {
		return expected, nil
	}
	if r.match == MatchFirst {
		r.logger.Warn("several objects match manifest entry, using the first",
			"manifest", manifestKey,
			"expected", expected,
			"chosen", candidates[0],
			"candidates", len(candidates),
		)
		return candidates[0], nil
	}
	return "", &AmbiguousResourceError{Manifest: manifestKey, ExpectedKey: expected, Candidates: candidates}
}

func (r *Resolver) register(ctx context.Context, cat *Catalog, owners map[string]string, rt fhir.ResourceType, res *fhir.Resource) error {
	url := res.URL()
	aliases := Aliases(url)

	for _, alias := range aliases {
		owner, taken := owners[alias]
		if !taken || owner == url {
			continue
		}
		if r.alias == AliasStrict {
			return &AliasCollisionError{Type: rt, Alias: alias, Existing: owner, Incoming: url}
		}
		r.logger.WarnContext(ctx, "alias overridden by later resource",
			"type", rt.String(),
			"alias", alias,
			"previous", owner,
			"current", url,
		)
	}

	for _, alias := range aliases {
		owners[alias] = url
		cat.partitions[rt][alias] = res
	}
	return nil
}
