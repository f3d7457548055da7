package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/proctorhq/examledger/pkg/chain"
)

// runAppendCmd appends one audit event to the chain.
//
// Exit codes:
//
//	0 = block appended
//	2 = runtime error or invalid input
func runAppendCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("append", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		eventType   string
		entityType  string
		entityID    string
		payloadJSON string
		jsonOutput  bool
	)

	cmd.StringVar(&eventType, "event", "", "Event type, e.g. exam_attempt_start (REQUIRED)")
	cmd.StringVar(&entityType, "entity-type", "", "Entity type, e.g. exam_attempt (REQUIRED)")
	cmd.StringVar(&entityID, "entity-id", "", "Entity identifier")
	cmd.StringVar(&payloadJSON, "payload", "{}", "Event payload as a JSON object")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the appended block as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if eventType == "" || entityType == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --event and --entity-type are required")
		cmd.Usage()
		return 2
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: --payload is not a JSON object: %v\n", err)
		return 2
	}

	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	l, _, closer, err := openLedger(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer closer()

	b, err := l.Append(ctx, chain.EventType(eventType), chain.EntityType(entityType), entityID, payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: append: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(b, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "Block appended\n")
	_, _ = fmt.Fprintf(stdout, "  Sequence: %d\n", b.Sequence)
	_, _ = fmt.Fprintf(stdout, "  Digest:   %s\n", b.Digest)
	_, _ = fmt.Fprintf(stdout, "  Event:    %s %s:%s\n", b.EventType, b.EntityType, b.EntityID)
	return 0
}
