package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/proctorhq/examledger/pkg/audit"
	"github.com/proctorhq/examledger/pkg/crypto"
)

// runExportCmd writes a signed evidence bundle for external auditors.
//
// Exit codes:
//
//	0 = bundle written
//	2 = runtime error
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		outPath string
		limit   int
	)

	cmd.StringVar(&outPath, "out", "", "Output path for the bundle JSON (REQUIRED)")
	cmd.IntVar(&limit, "limit", 0, "Export only the most recent N blocks (0 = all)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if outPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --out is required")
		cmd.Usage()
		return 2
	}

	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	blockStore, closer, err := openStore(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer closer()

	var signer crypto.Signer
	if cfg.SigningEnabled {
		ks, err := crypto.OpenKeystore(cfg.KeystorePath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: open keystore: %v\n", err)
			return 2
		}
		signer = ks.ActiveSigner()
	}

	bundle, err := audit.NewQuery(blockStore).Export(ctx, limit, signer)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: export: %v\n", err)
		return 2
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: marshal bundle: %v\n", err)
		return 2
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: write bundle: %v\n", err)
		return 2
	}

	_, _ = fmt.Fprintf(stdout, "Evidence bundle written: %s\n", outPath)
	_, _ = fmt.Fprintf(stdout, "  Bundle ID: %s\n", bundle.BundleID)
	_, _ = fmt.Fprintf(stdout, "  Blocks:    %d (seq %d..%d)\n", bundle.BlockCount, bundle.StartSequence, bundle.EndSequence)
	_, _ = fmt.Fprintf(stdout, "  Digest:    %s\n", bundle.BundleDigest)
	return 0
}
