// cmd/worker-manager/replay.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"notification-workers/internal/common/validation"
	"notification-workers/internal/notification/dispatcher"
)

var (
	replayFile      string
	replayNoDedup   bool
	replayFailOnErr bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Dispatch a single change event envelope read from a file",
	Long: `replay decodes one change event envelope (JSON) and runs it through the
dispatcher exactly once, printing the invocation report. Use "-" to read stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readEnvelope(replayFile)
		if err != nil {
			return err
		}
		event, err := validation.DecodeChangeEvent(raw)
		if err != nil {
			return err
		}
		if replayNoDedup {
			event.EventID = ""
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		report := a.dispatcher.Handle(context.Background(), event)

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		if replayFailOnErr && report.Outcome == dispatcher.OutcomeFailed {
			return fmt.Errorf("invocation %s failed", report.InvocationID)
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVarP(&replayFile, "file", "f", "", "path to the event envelope, or - for stdin")
	replayCmd.Flags().BoolVar(&replayNoDedup, "no-dedup", false, "drop the event id so the dedup store is bypassed")
	replayCmd.Flags().BoolVar(&replayFailOnErr, "fail-on-error", false, "exit non-zero when the invocation fails")
	_ = replayCmd.MarkFlagRequired("file")
}

func readEnvelope(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return raw, nil
}
