package main

import (
	"context"
	"flag"
	"fmt"
	"io"
)

// runRotateKeyCmd rotates the signing key. The rotation is appended to
// the ledger as a signer_key_rotated event signed by the new key, so the
// change of authority is itself tamper-evident.
//
// Exit codes:
//
//	0 = key rotated and recorded
//	2 = runtime error
func runRotateKeyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("rotate-key", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if !cfg.SigningEnabled {
		_, _ = fmt.Fprintln(stderr, "Error: signing is disabled (LEDGER_SIGNING_DISABLED=true)")
		return 2
	}

	l, ks, closer, err := openLedger(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer closer()

	b, err := l.RecordKeyRotation(ctx, ks)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: rotate key: %v\n", err)
		return 2
	}

	_, _ = fmt.Fprintf(stdout, "Signing key rotated\n")
	_, _ = fmt.Fprintf(stdout, "  New key:  %s\n", b.Payload["new_key_id"])
	_, _ = fmt.Fprintf(stdout, "  Recorded: seq %d, digest %s\n", b.Sequence, b.Digest)
	return 0
}
