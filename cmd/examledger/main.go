// Command examledger manages the exam platform's tamper-evident audit
// ledger: initializing the chain, appending events, verifying integrity,
// and exporting evidence bundles for external auditors.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "init":
		return runInitCmd(args[2:], stdout, stderr)
	case "append":
		return runAppendCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "summary":
		return runSummaryCmd(args[2:], stdout, stderr)
	case "chain":
		return runChainCmd(args[2:], stdout, stderr)
	case "trail":
		return runTrailCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "rotate-key":
		return runRotateKeyCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "examledger - tamper-evident audit ledger for exam platforms")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  examledger <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "LEDGER:")
	printCommand(w, "init", "Create the genesis block (idempotent)")
	printCommand(w, "append", "Append an audit event (--event, --entity-type, --entity-id, --payload)")
	printCommand(w, "rotate-key", "Rotate the signing key and record the rotation")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "AUDIT:")
	printCommand(w, "verify", "Verify chain integrity (--limit, --signatures, --json)")
	printCommand(w, "summary", "Show ledger statistics (--json)")
	printCommand(w, "chain", "List recent blocks (--limit, --offset, --json)")
	printCommand(w, "trail", "Show one entity's audit trail (--entity-type, --entity-id)")
	printCommand(w, "export", "Export a signed evidence bundle (--out, --limit)")
	fmt.Fprintln(w, "")
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %-12s %s\n", name, desc)
}
