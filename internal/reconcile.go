package internal

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Reconciler decides, from live service state, whether the declared key
// and storage resources already exist and provisions the missing ones
// exactly once. It never assumes a previous run finished cleanly: every
// run re-checks existence from scratch. Steps run in a fixed order
// (key -> alias -> rotation -> bucket -> encryption -> policy) because
// bucket-level KMS default encryption needs a concrete key ARN.
type Reconciler struct {
	Session *Session
	Log     *slog.Logger

	// SafeMode never creates resources; a missing key or bucket is fatal.
	SafeMode bool

	accountID string
}

func (r *Reconciler) log() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// account returns the calling identity's account id, fetched once per run.
func (r *Reconciler) account(ctx context.Context) (string, error) {
	if r.accountID != "" {
		return r.accountID, nil
	}
	ident, err := r.Session.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", &ProvisioningError{Op: "caller identity lookup", Cause: err}
	}
	r.accountID = aws.ToString(ident.Account)
	return r.accountID, nil
}

// ResourcePlan is the declared resource configuration for one run.
// Read-only input, never mutated.
type ResourcePlan struct {
	// KeyID is the configured key id, key ARN or alias; empty means the
	// run manages no encryption key.
	KeyID string
	Key   *KeySpec

	Bucket BucketSpec
}

// Reconcile runs the key step (when a key is configured) and then the
// bucket step, returning the resolved key ARN for downstream use.
// Re-running against unchanged live state performs zero creation calls.
func (r *Reconciler) Reconcile(ctx context.Context, plan ResourcePlan) (string, error) {
	bucket := plan.Bucket

	var keyARN string
	if plan.KeyID != "" {
		arn, err := r.EnsureKey(ctx, plan.KeyID, plan.Key)
		if err != nil {
			return "", err
		}
		keyARN = arn
		if bucket.SSE == SSEKMS && bucket.KeyARN == "" {
			bucket.KeyARN = keyARN
		}
	}

	return keyARN, r.EnsureBucket(ctx, bucket)
}
