// cmd/worker-manager/validate.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"notification-workers/internal/common/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check change event envelopes against the dispatch input schema",
	Long: `validate decodes each envelope file without connecting to any store and
reports whether the dispatcher would accept it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			raw, err := readEnvelope(path)
			if err != nil {
				return err
			}
			event, err := validation.DecodeChangeEvent(raw)
			if err != nil {
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "%s: invalid: %v\n", path, err)
				continue
			}
			kind := "update"
			if event.IsCreate() {
				kind = "create"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok %s %s/%s\n", path, kind, event.EntityKind, event.EntityID)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d envelopes invalid", failed, len(args))
		}
		return nil
	},
}
