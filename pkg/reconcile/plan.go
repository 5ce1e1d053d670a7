// Package reconcile converges an object store onto a desired set of
// implementation-guide objects.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/Mindburn-Labs/igcatalog/pkg/store"
)

// Mode selects how the plan treats existing store content.
type Mode string

const (
	// ModePopulate puts every desired object and deletes nothing.
	ModePopulate Mode = "populate"
	// ModeUpdate puts every desired object and deletes keys no longer desired.
	ModeUpdate Mode = "update"
	// ModeTeardown deletes every key in the store.
	ModeTeardown Mode = "teardown"
)

// ParseMode maps a mode name onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePopulate, ModeUpdate, ModeTeardown:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown reconcile mode %q (want populate, update or teardown)", s)
	}
}

// OpKind is a single store mutation.
type OpKind string

const (
	OpPut    OpKind = "put"
	OpDelete OpKind = "delete"
	OpList   OpKind = "list"
)

// Op is one applied or planned store operation.
type Op struct {
	Kind OpKind `json:"kind"`
	Key  string `json:"key"`
}

// Plan is the set of operations converging current onto desired.
type Plan struct {
	Mode    Mode           `json:"mode"`
	Puts    []store.Object `json:"-"`
	Deletes []string       `json:"deletes"`
}

// PutKeys returns the keys the plan will put, in order.
func (p Plan) PutKeys() []string {
	keys := make([]string, len(p.Puts))
	for i, obj := range p.Puts {
		keys[i] = obj.Key
	}
	return keys
}

// Ops returns the plan as an ordered operation list: deletes, then puts.
func (p Plan) Ops() []Op {
	ops := make([]Op, 0, len(p.Deletes)+len(p.Puts))
	for _, k := range p.Deletes {
		ops = append(ops, Op{Kind: OpDelete, Key: k})
	}
	for _, obj := range p.Puts {
		ops = append(ops, Op{Kind: OpPut, Key: obj.Key})
	}
	return ops
}

// Len returns the number of operations in the plan.
func (p Plan) Len() int {
	return len(p.Deletes) + len(p.Puts)
}

// ComputePlan builds the plan for mode. Desired objects are always re-put;
// there is no change detection. Duplicate desired keys keep the last object.
func ComputePlan(mode Mode, desired []store.Object, current []string) Plan {
	plan := Plan{Mode: mode}

	switch mode {
	case ModeTeardown:
		plan.Deletes = sortedUnique(current)
		return plan
	case ModePopulate, ModeUpdate:
	default:
		return plan
	}

	want := make(map[string]int, len(desired))
	for _, obj := range desired {
		if i, dup := want[obj.Key]; dup {
			plan.Puts[i] = obj
			continue
		}
		want[obj.Key] = len(plan.Puts)
		plan.Puts = append(plan.Puts, obj)
	}
	sort.Slice(plan.Puts, func(i, j int) bool { return plan.Puts[i].Key < plan.Puts[j].Key })

	if mode == ModeUpdate {
		for _, k := range sortedUnique(current) {
			if _, keep := want[k]; !keep {
				plan.Deletes = append(plan.Deletes, k)
			}
		}
	}
	return plan
}

func sortedUnique(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}
