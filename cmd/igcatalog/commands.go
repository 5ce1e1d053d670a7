package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Mindburn-Labs/igcatalog/pkg/chain"
	"github.com/Mindburn-Labs/igcatalog/pkg/fhir"
	"github.com/Mindburn-Labs/igcatalog/pkg/lifecycle"
	"github.com/Mindburn-Labs/igcatalog/pkg/reconcile"
	"github.com/Mindburn-Labs/igcatalog/pkg/store"
)

const notifyTimeout = 30 * time.Second

func runValidateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: igcatalog validate <file|->")
		return 2
	}

	doc, err := readInput(cmd.Arg(0))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	a, err := newApp(ctx, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer a.close(ctx)

	c, err := a.loadChain(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	v, err := a.newValidator(chain.NewHolder(c))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	resp := v.Validate(ctx, doc)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if !resp.Successful {
		return 1
	}
	return 0
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func runCatalogCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("catalog", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	jsonOutput := cmd.Bool("json", false, "Output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	a, err := newApp(ctx, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer a.close(ctx)

	s, err := a.openStore(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer closeStore(s)

	cat, err := a.loadCatalog(ctx, s)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	type entry struct {
		Type    string `json:"resourceType"`
		URL     string `json:"url"`
		ID      string `json:"id,omitempty"`
		Version string `json:"version,omitempty"`
	}
	entries := make([]entry, 0, cat.Size())
	for _, rt := range fhir.AllResourceTypes {
		for _, res := range cat.Resources(rt) {
			entries = append(entries, entry{Type: rt.String(), URL: res.URL(), ID: res.ID, Version: res.Version})
		}
	}

	if *jsonOutput {
		data, _ := json.MarshalIndent(entries, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}
	for _, rt := range fhir.AllResourceTypes {
		_, _ = fmt.Fprintf(stdout, "%-20s %d\n", rt.String(), cat.Len(rt))
	}
	for _, e := range entries {
		_, _ = fmt.Fprintf(stdout, "  %-20s %s\n", e.Type, e.URL)
	}
	return 0
}

func runPlanCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("plan", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	modeName := cmd.String("mode", string(reconcile.ModeUpdate), "populate, update or teardown")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	mode, err := reconcile.ParseMode(*modeName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	a, err := newApp(ctx, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer a.close(ctx)

	var desired []store.Object
	if mode != reconcile.ModeTeardown {
		if desired, err = a.desired(); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	s, err := a.openStore(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer closeStore(s)

	plan, err := reconcile.New(s, a.reconcileOptions()...).Plan(ctx, mode, desired)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, op := range plan.Ops() {
		_, _ = fmt.Fprintf(stdout, "%-6s %s\n", op.Kind, op.Key)
	}
	_, _ = fmt.Fprintf(stdout, "%s: %d to delete, %d to upload\n", mode, len(plan.Deletes), len(plan.Puts))
	return 0
}

func runSyncCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("sync", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	modeName := cmd.String("mode", string(reconcile.ModeUpdate), "populate, update or teardown")
	jsonOutput := cmd.Bool("json", false, "Output the outcome as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	mode, err := reconcile.ParseMode(*modeName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	a, err := newApp(ctx, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer a.close(ctx)

	var desired []store.Object
	if mode != reconcile.ModeTeardown {
		if desired, err = a.desired(); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	s, err := a.openStore(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer closeStore(s)

	out := reconcile.New(s, a.reconcileOptions()...).Run(ctx, mode, desired)
	return printOutcome(stdout, out, *jsonOutput)
}

func runProvisionCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("provision", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	eventPath := cmd.String("event", "", "Path to the event document (- for stdin)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *eventPath == "" {
		_, _ = fmt.Fprintln(stderr, "Usage: igcatalog provision --event <file|->")
		return 2
	}

	data, err := readInput(*eventPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	ev, err := lifecycle.ParseEvent(data)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	a, err := newApp(ctx, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer a.close(ctx)

	var notifier lifecycle.Notifier = lifecycle.NewLogNotifier()
	if ev.ResponseURL != "" {
		notifier = lifecycle.NewHTTPNotifier(&http.Client{Timeout: notifyTimeout})
	}
	openStore := func(ctx context.Context, bucket string) (store.Store, error) {
		return store.New(ctx, a.cfg.StoreConfigForBucket(bucket))
	}

	out := lifecycle.NewHandler(openStore, a.desired, notifier, a.reconcileOptions()...).Handle(ctx, ev)
	return printOutcome(stdout, out, false)
}

func printOutcome(w io.Writer, out reconcile.Outcome, asJSON bool) int {
	if asJSON {
		data, _ := json.MarshalIndent(out, "", "  ")
		_, _ = fmt.Fprintln(w, string(data))
	} else {
		_, _ = fmt.Fprintf(w, "%s %s: %s\n", out.Status, out.Mode, out.Message)
		if out.Partial() {
			_, _ = fmt.Fprintf(w, "  %d operations applied before failure, %d pending\n", len(out.Applied), out.Pending)
		}
	}
	if out.Status != reconcile.StatusSuccess {
		return 1
	}
	return 0
}
