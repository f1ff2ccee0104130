package cmd

import (
	"fmt"
	"log/slog"

	"github.com/chukul/s3mirror/internal"
	"github.com/chukul/s3mirror/internal/config"
	"github.com/chukul/s3mirror/internal/ui"
	"github.com/spf13/cobra"
)

var (
	setupForceAssume bool
	setupSafeMode    bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Reconcile the declared key and bucket without mirroring anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		sess, err := buildSession(ctx, cfg, setupForceAssume)
		if err != nil {
			return err
		}

		rec := &internal.Reconciler{
			Session:  sess,
			Log:      slog.Default(),
			SafeMode: cfg.SafeMode || setupSafeMode,
		}
		_, err = ui.Spin("Reconciling key and bucket...", func() (any, error) {
			return rec.Reconcile(ctx, buildPlan(cfg))
		})
		if err != nil {
			return err
		}

		fmt.Printf("✅ Bucket %s matches the declared configuration\n", cfg.S3.Bucket)
		return nil
	},
}

func init() {
	setupCmd.Flags().BoolVar(&setupForceAssume, "force-assume", false, "Always perform a fresh role assumption, ignoring the cache")
	setupCmd.Flags().BoolVar(&setupSafeMode, "safe", false, "Validate resources only; never create anything")

	rootCmd.AddCommand(setupCmd)
}
