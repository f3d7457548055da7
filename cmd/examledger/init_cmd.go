package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
)

// runInitCmd creates the genesis block. Safe to run on every startup: if
// the ledger already has blocks, the existing genesis is reported.
//
// Exit codes:
//
//	0 = genesis present (created or pre-existing)
//	2 = runtime error
func runInitCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("init", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		systemName string
		jsonOutput bool
	)

	cfg, err := loadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	cmd.StringVar(&systemName, "system", cfg.SystemName, "System name recorded in the genesis payload")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the genesis block as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	l, _, closer, err := openLedger(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer closer()

	genesis, err := l.InitializeGenesis(ctx, systemName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: initialize genesis: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(genesis, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "Genesis block ready\n")
	_, _ = fmt.Fprintf(stdout, "  Sequence: %d\n", genesis.Sequence)
	_, _ = fmt.Fprintf(stdout, "  Digest:   %s\n", genesis.Digest)
	_, _ = fmt.Fprintf(stdout, "  Created:  %s\n", genesis.CreatedAt)
	return 0
}
