package cmd

import (
	"context"
	"log/slog"

	"github.com/chukul/s3mirror/internal"
	"github.com/chukul/s3mirror/internal/config"
	"github.com/chukul/s3mirror/internal/ui"
)

// buildSession builds the working session from the declared configuration:
// the base session from the config's credential source, then the assumed
// role session on top when one is declared.
func buildSession(ctx context.Context, cfg *config.Config, force bool) (*internal.Session, error) {
	base, err := internal.NewSession(ctx, internal.SessionOptions{
		Region:          cfg.AWS.Region,
		Profile:         cfg.AWS.Profile,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		CredentialsFile: credentialsFile,
		TempProfile:     tempProfile,
	})
	if err != nil {
		return nil, err
	}

	if cfg.AWS.AssumeRole == "" {
		return base, nil
	}

	lifecycle := &internal.Lifecycle{
		Store: &internal.ProfileStore{Path: credentialsFile},
		Log:   slog.Default(),
	}

	res, err := ui.Spin("Resolving role session...", func() (any, error) {
		return lifecycle.EnsureRoleSession(ctx, base, internal.RoleRequest{
			RoleArn:         cfg.AWS.AssumeRole,
			SessionName:     "s3mirror",
			DurationSeconds: cfg.AWS.AssumeRoleDuration,
			Region:          cfg.AWS.Region,
			TempProfile:     tempProfile,
			Force:           force,
		})
	})
	if err != nil {
		return nil, err
	}
	return res.(*internal.Session), nil
}

// buildPlan translates the declared configuration into a resource plan.
func buildPlan(cfg *config.Config) internal.ResourcePlan {
	plan := internal.ResourcePlan{
		KeyID: cfg.S3.KMSKeyID,
		Bucket: internal.BucketSpec{
			Name: cfg.S3.Bucket,
			SSE:  cfg.S3.SSE,
		},
	}
	if cfg.Setup != nil {
		plan.Key = &internal.KeySpec{
			Policy:         cfg.Setup.KeyPolicy,
			Origin:         cfg.Setup.KeyOrigin,
			KeyStoreID:     cfg.Setup.KeyStoreID,
			Material:       cfg.Setup.KeyMaterial,
			EnableRotation: cfg.Setup.EnableKeyRotation,
		}
		plan.Bucket.Policy = cfg.Setup.BucketPolicy
	}
	return plan
}

// buildSyncer assembles the sync orchestrator for the configured bucket.
func buildSyncer(cfg *config.Config, keyARN string, log *slog.Logger) *internal.Syncer {
	return &internal.Syncer{
		Bucket:   cfg.S3.Bucket,
		BasePath: cfg.S3.BasePath,
		SSE:      cfg.S3.SSE,
		KeyARN:   keyARN,
		Profile:  tempProfile,
		Runner:   internal.ExecRunner{},
		Log:      log,
	}
}

// syncSources converts config sources into syncer sources.
func syncSources(cfg *config.Config) []internal.SyncSource {
	out := make([]internal.SyncSource, 0, len(cfg.Files))
	for _, f := range cfg.Files {
		out = append(out, internal.SyncSource{Path: f.Path, ExtraOptions: f.ExtraOptions})
	}
	return out
}
