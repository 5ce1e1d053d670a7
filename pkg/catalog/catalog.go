// Package catalog resolves implementation-guide manifests against stored
// content and indexes the resulting definitions by canonical url aliases.
package catalog

import (
	"sort"
	"strings"

	"github.com/Mindburn-Labs/igcatalog/pkg/fhir"
)

// Catalog maps alias keys to resources, partitioned by resource type.
// A Catalog is immutable once Resolve returns it.
type Catalog struct {
	partitions map[fhir.ResourceType]map[string]*fhir.Resource
}

func newCatalog() *Catalog {
	c := &Catalog{partitions: make(map[fhir.ResourceType]map[string]*fhir.Resource, len(fhir.AllResourceTypes))}
	for _, t := range fhir.AllResourceTypes {
		c.partitions[t] = make(map[string]*fhir.Resource)
	}
	return c
}

// Aliases returns the keys a canonical url is registered under: the url
// itself, the text after the last '/', and the text after the
// second-to-last '/'. A suffix is registered whenever its separator exists,
// even when it is empty.
func Aliases(url string) []string {
	aliases := []string{url}
	last := strings.LastIndexByte(url, '/')
	if last < 0 {
		return aliases
	}
	aliases = append(aliases, url[last+1:])
	if prev := strings.LastIndexByte(url[:last], '/'); prev >= 0 {
		aliases = append(aliases, url[prev+1:])
	}
	return aliases
}

// Lookup finds a resource of type t by any of its aliases.
func (c *Catalog) Lookup(t fhir.ResourceType, key string) (*fhir.Resource, bool) {
	res, ok := c.partitions[t][key]
	return res, ok
}

// Len returns the number of alias keys registered for t.
func (c *Catalog) Len(t fhir.ResourceType) int {
	return len(c.partitions[t])
}

// Keys returns the sorted alias keys registered for t.
func (c *Catalog) Keys(t fhir.ResourceType) []string {
	keys := make([]string, 0, len(c.partitions[t]))
	for k := range c.partitions[t] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resources returns the distinct resources of type t sorted by url.
func (c *Catalog) Resources(t fhir.ResourceType) []*fhir.Resource {
	seen := make(map[*fhir.Resource]struct{})
	var out []*fhir.Resource
	for _, res := range c.partitions[t] {
		if _, ok := seen[res]; ok {
			continue
		}
		seen[res] = struct{}{}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL() < out[j].URL() })
	return out
}

// Size returns the number of distinct resources across all types.
func (c *Catalog) Size() int {
	n := 0
	for _, t := range fhir.AllResourceTypes {
		n += len(c.Resources(t))
	}
	return n
}
