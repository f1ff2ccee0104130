package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/chukul/s3mirror/internal/config"
	"github.com/spf13/cobra"
)

var syncForceAssume bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror configured sources into the bucket (resources must already exist)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		// The session is only needed to refresh the cached temp profile
		// the external tool reads; the tool itself does the transfer.
		if _, err := buildSession(ctx, cfg, syncForceAssume); err != nil {
			return err
		}

		os.Setenv("AWS_SHARED_CREDENTIALS_FILE", credentialsFile)

		syncer := buildSyncer(cfg, cfg.S3.KMSKeyID, slog.Default())
		if failed := syncer.SyncAll(ctx, syncSources(cfg)); failed > 0 {
			return fmt.Errorf("%d source(s) failed to sync", failed)
		}

		fmt.Printf("✅ %d source(s) mirrored to s3://%s\n", len(cfg.Files), cfg.S3.Bucket)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncForceAssume, "force-assume", false, "Always perform a fresh role assumption, ignoring the cache")

	rootCmd.AddCommand(syncCmd)
}
