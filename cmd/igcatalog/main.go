package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const version = "0.3.0"

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServe(nil, stdout, stderr)
	}

	switch args[1] {
	case "serve", "server":
		return runServe(args[2:], stdout, stderr)
	case "validate":
		return runValidateCmd(args[2:], stdout, stderr)
	case "sync":
		return runSyncCmd(args[2:], stdout, stderr)
	case "plan":
		return runPlanCmd(args[2:], stdout, stderr)
	case "catalog":
		return runCatalogCmd(args[2:], stdout, stderr)
	case "provision":
		return runProvisionCmd(args[2:], stdout, stderr)
	case "version":
		_, _ = fmt.Fprintf(stdout, "igcatalog %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if strings.HasPrefix(args[1], "-") {
			return runServe(args[1:], stdout, stderr)
		}
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "igcatalog %s\n", version)
	fmt.Fprintln(w, "Implementation-guide catalog, validator and store sync.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  igcatalog <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "SERVING:")
	printCommand(w, "serve", "Build the catalog and serve POST /validate (default)")
	printCommand(w, "validate", "Validate a document file against the catalog (- for stdin)")
	printCommand(w, "catalog", "Resolve the catalog and list its resources (--json)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "STORE SYNC:")
	printCommand(w, "plan", "Show the operations a sync would apply (--mode)")
	printCommand(w, "sync", "Converge the store onto the local corpus (--mode)")
	printCommand(w, "provision", "Handle a provisioning event document (--event)")
	fmt.Fprintln(w, "")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %-12s %s\n", name, desc)
}
