package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newProbeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Show which rate limiter would be selected",
		Long: `Run the startup selection: probe Redis when enabled and report whether the
shared (distributed) or in-process limiter would be used, with its stats.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"limiter": rt.selection.Info(),
				"stats":   rt.selection.Limiter.GetStats(ctx),
			})
		},
	}
}
