package internal

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// STSAPI is the slice of the STS client this tool uses.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// KMSAPI is the slice of the KMS client this tool uses.
type KMSAPI interface {
	ListKeys(ctx context.Context, params *kms.ListKeysInput, optFns ...func(*kms.Options)) (*kms.ListKeysOutput, error)
	ListAliases(ctx context.Context, params *kms.ListAliasesInput, optFns ...func(*kms.Options)) (*kms.ListAliasesOutput, error)
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	CreateAlias(ctx context.Context, params *kms.CreateAliasInput, optFns ...func(*kms.Options)) (*kms.CreateAliasOutput, error)
	EnableKeyRotation(ctx context.Context, params *kms.EnableKeyRotationInput, optFns ...func(*kms.Options)) (*kms.EnableKeyRotationOutput, error)
	GetParametersForImport(ctx context.Context, params *kms.GetParametersForImportInput, optFns ...func(*kms.Options)) (*kms.GetParametersForImportOutput, error)
	ImportKeyMaterial(ctx context.Context, params *kms.ImportKeyMaterialInput, optFns ...func(*kms.Options)) (*kms.ImportKeyMaterialOutput, error)
}

// S3API is the slice of the S3 client this tool uses.
type S3API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketEncryption(ctx context.Context, params *s3.PutBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.PutBucketEncryptionOutput, error)
	PutBucketPolicy(ctx context.Context, params *s3.PutBucketPolicyInput, optFns ...func(*s3.Options)) (*s3.PutBucketPolicyOutput, error)
}

// The real SDK clients must keep satisfying the narrowed interfaces.
var (
	_ STSAPI = (*sts.Client)(nil)
	_ KMSAPI = (*kms.Client)(nil)
	_ S3API  = (*s3.Client)(nil)
)

// Session binds one set of credentials and a region to authenticated
// control-plane clients. It is constructed once by the entry point and
// passed to every component that talks to the cloud.
type Session struct {
	Region string

	STS STSAPI
	KMS KMSAPI
	S3  S3API

	cfg aws.Config
}

// SessionOptions selects the credential source for a new session.
// Exactly one of Profile or the AccessKeyID/SecretAccessKey pair must be
// given.
type SessionOptions struct {
	Region string

	// Named profile in the shared config/credentials files.
	Profile string

	// Explicit long- or short-lived secrets.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Required when explicit secrets are given: where to cache them so
	// the external sync tool can pick them up without re-specifying
	// secrets. Best-effort bootstrapping, not guaranteed fresh.
	CredentialsFile string
	TempProfile     string
}

// NewSession builds an authenticated session from a named profile or an
// explicit key pair.
func NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	hasKey := opts.AccessKeyID != ""
	hasSecret := opts.SecretAccessKey != ""

	if hasKey != hasSecret {
		return nil, &ConfigError{
			Field:  "aws.access_key_id/aws.secret_access_key",
			Reason: "both must be provided together, or neither",
		}
	}
	if opts.Profile != "" && hasKey {
		return nil, &ConfigError{
			Field:  "aws.profile",
			Reason: "a profile and an explicit key pair are mutually exclusive",
		}
	}
	if opts.Profile == "" && !hasKey {
		return nil, &ConfigError{
			Field:  "aws",
			Reason: "either a profile or an access key pair is required",
		}
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	} else {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				opts.AccessKeyID,
				opts.SecretAccessKey,
				opts.SessionToken,
			)))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	sess := newSessionFromConfig(cfg, opts.Region)

	// Cache raw secrets into the temp profile so downstream tooling can
	// reuse them without being handed the secrets again.
	if hasKey {
		if opts.CredentialsFile == "" || opts.TempProfile == "" {
			return nil, &ConfigError{
				Field:  "credentials-file/temp-profile",
				Reason: "required when passing an explicit access key pair",
			}
		}
		store := &ProfileStore{Path: opts.CredentialsFile}
		err := store.WriteProfile(&Profile{
			Name:            opts.TempProfile,
			AccessKeyID:     opts.AccessKeyID,
			SecretAccessKey: opts.SecretAccessKey,
			SessionToken:    opts.SessionToken,
			Region:          opts.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to cache credentials: %w", err)
		}
	}

	return sess, nil
}

func newSessionFromConfig(cfg aws.Config, region string) *Session {
	return &Session{
		Region: region,
		STS:    sts.NewFromConfig(cfg),
		KMS:    kms.NewFromConfig(cfg),
		S3:     s3.NewFromConfig(cfg),
		cfg:    cfg,
	}
}

// sessionFromStatic builds a session directly from stored temporary
// credentials, without touching the shared config files or STS.
func sessionFromStatic(ctx context.Context, accessKey, secretKey, token, region string) (*Session, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			token,
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSessionFromConfig(cfg, region), nil
}
