package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/proctorhq/examledger/pkg/audit"
	"github.com/proctorhq/examledger/pkg/chain"
)

// runSummaryCmd prints ledger statistics.
func runSummaryCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("summary", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var jsonOutput bool
	cmd.BoolVar(&jsonOutput, "json", false, "Output the summary as JSON")

	if err := cmd.Parse(args); err != nil {
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

	summary, err := audit.NewQuery(blockStore).Summarize(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: summarize: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(summary, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "Total blocks: %d\n", summary.TotalBlocks)
	_, _ = fmt.Fprintf(stdout, "Initialized:  %v\n", summary.Initialized)
	if summary.LatestBlock != nil {
		_, _ = fmt.Fprintf(stdout, "Latest:       seq %d, %s (%s)\n",
			summary.LatestBlock.Sequence, summary.LatestBlock.EventType, summary.LatestBlock.CreatedAt)
	}
	for _, c := range summary.CountsByEventType {
		_, _ = fmt.Fprintf(stdout, "  %-36s %d\n", c.EventType, c.Count)
	}
	return 0
}

// runChainCmd lists recent blocks, most recent first.
func runChainCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("chain", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		limit      int
		offset     int
		eventType  string
		jsonOutput bool
	)

	cmd.IntVar(&limit, "limit", 20, "Number of blocks to list")
	cmd.IntVar(&offset, "offset", 0, "Number of most recent blocks to skip")
	cmd.StringVar(&eventType, "event", "", "List only blocks of this event type")
	cmd.BoolVar(&jsonOutput, "json", false, "Output blocks as JSON")

	if err := cmd.Parse(args); err != nil {
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

	q := audit.NewQuery(blockStore)

	var blocks []*chain.Block
	if eventType != "" {
		blocks, err = q.ByEventType(ctx, chain.EventType(eventType), limit)
	} else {
		blocks, err = q.Chain(ctx, limit, offset)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: list blocks: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(blocks, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	for _, b := range blocks {
		// %.16s: a corrupt row may carry a digest shorter than 16 chars.
		_, _ = fmt.Fprintf(stdout, "%6d  %.16s  %-32s %s:%s\n",
			b.Sequence, b.Digest, b.EventType, b.EntityType, b.EntityID)
	}
	return 0
}

// runTrailCmd prints one entity's complete audit trail with its inline
// consistency check.
//
// Exit codes:
//
//	0 = trail consistent (possibly empty)
//	1 = trail compromised
//	2 = runtime error
func runTrailCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("trail", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		entityType string
		entityID   string
		jsonOutput bool
	)

	cmd.StringVar(&entityType, "entity-type", "", "Entity type, e.g. exam_attempt (REQUIRED)")
	cmd.StringVar(&entityID, "entity-id", "", "Entity identifier (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the trail as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if entityType == "" || entityID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --entity-type and --entity-id are required")
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

	trail, err := audit.NewQuery(blockStore).Trail(ctx, chain.EntityType(entityType), entityID)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: trail: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(trail, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		_, _ = fmt.Fprintf(stdout, "Trail for %s:%s (%d events)\n", entityType, entityID, trail.TotalEvents)
		for _, b := range trail.Blocks {
			_, _ = fmt.Fprintf(stdout, "%6d  %s  %-32s %.16s\n",
				b.Sequence, b.CreatedAt.Format("2006-01-02 15:04:05"), b.EventType, b.Digest)
		}
		_, _ = fmt.Fprintf(stdout, "Verification: %s\n", trail.Verification.Message)
	}

	if !trail.Verification.Valid {
		return 1
	}
	return 0
}
