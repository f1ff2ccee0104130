package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chukul/s3mirror/internal/logging"
	"github.com/spf13/cobra"
)

var (
	credentialsFile string
	configFile      string
	tempProfile     string
	verbosity       int
)

var rootCmd = &cobra.Command{
	Use:   "s3mirror",
	Short: "s3mirror mirrors local directories into encrypted S3 storage",
	Long: `s3mirror provisions a scoped temporary AWS credential, makes sure the
declared KMS key and S3 bucket exist with the requested encryption posture,
and mirrors configured directories into the bucket.

Each run is idempotent: existing resources are validated, missing ones are
created exactly once.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbosity)
	},
}

func init() {
	defaultCreds := filepath.Join(os.Getenv("HOME"), ".aws", "credentials")

	rootCmd.PersistentFlags().StringVar(&credentialsFile, "credentials-file", defaultCreds, "Path to the shared AWS credentials file")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "s3mirror.yaml", "Path to the declared configuration file")
	rootCmd.PersistentFlags().StringVar(&tempProfile, "temp-profile", "s3mirror", "Profile name used to cache the temporary session")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (repeat up to -vvvv: critical, error, warning, info, debug)")
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
