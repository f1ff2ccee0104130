package internal

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Server-side encryption modes accepted in the declared configuration.
const (
	SSENone   = ""
	SSEAES256 = "AES256"
	SSEKMS    = "aws:kms"
)

// BucketSpec declares the single bucket this run maintains.
type BucketSpec struct {
	Name string
	// SSE is the default-encryption mode: "", AES256 or aws:kms.
	SSE string
	// KeyARN backs aws:kms default encryption.
	KeyARN string
	// Policy is a bucket policy document, verbatim JSON.
	Policy string
}

// EnsureBucket resolves the bucket against the live listing and creates
// and configures it when missing. Encryption is applied only when a mode
// was actually requested, independent of whether a key step ran.
func (r *Reconciler) EnsureBucket(ctx context.Context, spec BucketSpec) error {
	found, err := r.findBucket(ctx, spec.Name)
	if err != nil {
		return err
	}
	if found {
		r.log().Info("bucket exists", "bucket", spec.Name)
		return nil
	}
	if r.SafeMode {
		return &ResourceMissingError{Kind: "bucket", Name: spec.Name}
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(spec.Name)}
	// us-east-1 is the API default and rejects an explicit constraint.
	if r.Session.Region != "" && r.Session.Region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(r.Session.Region),
		}
	}
	if _, err := r.Session.S3.CreateBucket(ctx, input); err != nil {
		return &ProvisioningError{Op: "bucket creation", Cause: err}
	}
	r.log().Info("created bucket", "bucket", spec.Name, "region", r.Session.Region)

	if spec.SSE != SSENone {
		if err := r.putBucketEncryption(ctx, spec); err != nil {
			return err
		}
	}

	if spec.Policy != "" {
		_, err := r.Session.S3.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
			Bucket: aws.String(spec.Name),
			Policy: aws.String(spec.Policy),
		})
		if err != nil {
			return &ProvisioningError{Op: "bucket policy", Cause: err}
		}
		r.log().Info("applied bucket policy", "bucket", spec.Name)
	}

	return nil
}

func (r *Reconciler) putBucketEncryption(ctx context.Context, spec BucketSpec) error {
	rule := s3types.ServerSideEncryptionRule{
		ApplyServerSideEncryptionByDefault: &s3types.ServerSideEncryptionByDefault{},
	}
	switch spec.SSE {
	case SSEAES256:
		rule.ApplyServerSideEncryptionByDefault.SSEAlgorithm = s3types.ServerSideEncryptionAes256
	case SSEKMS:
		rule.ApplyServerSideEncryptionByDefault.SSEAlgorithm = s3types.ServerSideEncryptionAwsKms
		if spec.KeyARN != "" {
			rule.ApplyServerSideEncryptionByDefault.KMSMasterKeyID = aws.String(spec.KeyARN)
		}
	default:
		return &ConfigError{Field: "s3.sse", Reason: fmt.Sprintf("unknown encryption mode %q", spec.SSE)}
	}

	_, err := r.Session.S3.PutBucketEncryption(ctx, &s3.PutBucketEncryptionInput{
		Bucket: aws.String(spec.Name),
		ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
			Rules: []s3types.ServerSideEncryptionRule{rule},
		},
	})
	if err != nil {
		return &ProvisioningError{Op: "bucket default encryption", Cause: err}
	}
	r.log().Info("applied bucket default encryption", "bucket", spec.Name, "mode", spec.SSE)
	return nil
}

// findBucket matches the bucket by exact name in the live listing.
func (r *Reconciler) findBucket(ctx context.Context, name string) (bool, error) {
	out, err := r.Session.S3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return false, fmt.Errorf("failed to list buckets: %w", err)
	}
	for _, b := range out.Buckets {
		if aws.ToString(b.Name) == name {
			return true, nil
		}
	}
	return false, nil
}
