package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/chukul/s3mirror/internal"
	"github.com/chukul/s3mirror/internal/config"
	"github.com/chukul/s3mirror/internal/ui"
	"github.com/spf13/cobra"
)

var (
	runForceAssume bool
	runSafeMode    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resolve credentials, reconcile resources, then mirror all sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := slog.Default()

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		sess, err := buildSession(ctx, cfg, runForceAssume)
		if err != nil {
			return err
		}

		rec := &internal.Reconciler{
			Session:  sess,
			Log:      log,
			SafeMode: cfg.SafeMode || runSafeMode,
		}
		res, err := ui.Spin("Reconciling key and bucket...", func() (any, error) {
			return rec.Reconcile(ctx, buildPlan(cfg))
		})
		if err != nil {
			return err
		}
		keyARN := res.(string)

		// The external tool reads the cached temp profile from the same
		// credentials file this process wrote.
		os.Setenv("AWS_SHARED_CREDENTIALS_FILE", credentialsFile)

		syncer := buildSyncer(cfg, keyARN, log)
		if failed := syncer.SyncAll(ctx, syncSources(cfg)); failed > 0 {
			return fmt.Errorf("%d source(s) failed to sync", failed)
		}

		fmt.Printf("✅ %d source(s) mirrored to s3://%s\n", len(cfg.Files), cfg.S3.Bucket)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runForceAssume, "force-assume", false, "Always perform a fresh role assumption, ignoring the cache")
	runCmd.Flags().BoolVar(&runSafeMode, "safe", false, "Validate resources only; never create anything")

	rootCmd.AddCommand(runCmd)
}
