package internal

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// KeySpec declares how a missing encryption key is created. A nil spec
// falls back to the minimal defaults: AWS_KMS origin, encrypt/decrypt
// usage, policy lockout check bypassed.
type KeySpec struct {
	// Policy is the key policy document, verbatim JSON.
	Policy string
	// Origin is AWS_KMS, AWS_CLOUDHSM or EXTERNAL.
	Origin string
	// KeyStoreID names the custom key store; required for AWS_CLOUDHSM.
	KeyStoreID string
	// Material is base64-encoded key material; required for EXTERNAL.
	Material string
	// EnableRotation turns on annual rotation after creation.
	EnableRotation bool
}

func (s *KeySpec) origin() kmstypes.OriginType {
	if s == nil || s.Origin == "" {
		return kmstypes.OriginTypeAwsKms
	}
	return kmstypes.OriginType(s.Origin)
}

// normalizeKeyARN turns a key id or alias name into a fully-qualified ARN.
// Inputs that already look like an ARN pass through untouched.
func normalizeKeyARN(id, region, account string) string {
	if strings.HasPrefix(id, "arn:") {
		return id
	}
	resource := id
	if !strings.HasPrefix(resource, "alias/") && !strings.HasPrefix(resource, "key/") {
		resource = "key/" + resource
	}
	return fmt.Sprintf("arn:aws:kms:%s:%s:%s", region, account, resource)
}

// isAliasARN reports whether the normalized ARN denotes an alias rather
// than a raw key.
func isAliasARN(arn string) bool {
	idx := strings.LastIndex(arn, ":")
	if idx < 0 {
		return false
	}
	return strings.HasPrefix(arn[idx+1:], "alias/")
}

// aliasNameFromARN extracts "alias/<name>" from an alias ARN.
func aliasNameFromARN(arn string) string {
	idx := strings.LastIndex(arn, ":")
	if idx < 0 {
		return arn
	}
	return arn[idx+1:]
}

// EnsureKey resolves the configured key identifier against the live key
// and alias listings and creates the key (plus alias and rotation) when it
// does not exist. It returns the ARN the bucket encryption step should
// bind to.
func (r *Reconciler) EnsureKey(ctx context.Context, keyID string, spec *KeySpec) (string, error) {
	account, err := r.account(ctx)
	if err != nil {
		return "", err
	}

	arn := normalizeKeyARN(keyID, r.Session.Region, account)

	if isAliasARN(arn) {
		found, target, err := r.findAlias(ctx, arn)
		if err != nil {
			return "", err
		}
		if found {
			r.log().Info("kms alias exists", "alias", arn)
			return normalizeKeyARN(target, r.Session.Region, account), nil
		}
		if r.SafeMode {
			return "", &ResourceMissingError{Kind: "kms alias", Name: arn}
		}
		keyARN, newKeyID, err := r.createKey(ctx, spec)
		if err != nil {
			return "", err
		}
		r.followUps(ctx, newKeyID, aliasNameFromARN(arn), spec)
		return keyARN, nil
	}

	found, err := r.findKey(ctx, arn)
	if err != nil {
		return "", err
	}
	if found {
		r.log().Info("kms key exists", "key", arn)
		return arn, nil
	}
	if r.SafeMode {
		return "", &ResourceMissingError{Kind: "kms key", Name: arn}
	}
	keyARN, newKeyID, err := r.createKey(ctx, spec)
	if err != nil {
		return "", err
	}
	r.followUps(ctx, newKeyID, "", spec)
	return keyARN, nil
}

// findKey searches the live key listing for an exact ARN match.
func (r *Reconciler) findKey(ctx context.Context, arn string) (bool, error) {
	var marker *string
	for {
		out, err := r.Session.KMS.ListKeys(ctx, &kms.ListKeysInput{Marker: marker})
		if err != nil {
			return false, fmt.Errorf("failed to list kms keys: %w", err)
		}
		for _, k := range out.Keys {
			if aws.ToString(k.KeyArn) == arn {
				return true, nil
			}
		}
		if !out.Truncated {
			return false, nil
		}
		marker = out.NextMarker
	}
}

// findAlias searches the live alias listing for an exact ARN match and
// returns the target key id when found.
func (r *Reconciler) findAlias(ctx context.Context, arn string) (bool, string, error) {
	var marker *string
	for {
		out, err := r.Session.KMS.ListAliases(ctx, &kms.ListAliasesInput{Marker: marker})
		if err != nil {
			return false, "", fmt.Errorf("failed to list kms aliases: %w", err)
		}
		for _, a := range out.Aliases {
			if aws.ToString(a.AliasArn) == arn {
				return true, aws.ToString(a.TargetKeyId), nil
			}
		}
		if !out.Truncated {
			return false, "", nil
		}
		marker = out.NextMarker
	}
}

// createKey provisions a new encryption key as declared, running the
// external key-material import exchange when the origin demands it.
func (r *Reconciler) createKey(ctx context.Context, spec *KeySpec) (arn, keyID string, err error) {
	input := &kms.CreateKeyInput{
		BypassPolicyLockoutSafetyCheck: true,
		KeyUsage:                       kmstypes.KeyUsageTypeEncryptDecrypt,
		Origin:                         spec.origin(),
	}
	if spec != nil {
		if spec.Policy != "" {
			input.Policy = aws.String(spec.Policy)
		}
		if spec.KeyStoreID != "" {
			input.CustomKeyStoreId = aws.String(spec.KeyStoreID)
		}
	}

	// Configuration problems must surface before anything is created.
	var material []byte
	switch input.Origin {
	case kmstypes.OriginTypeAwsCloudhsm:
		if input.CustomKeyStoreId == nil {
			return "", "", &ConfigError{
				Field:  "setup.key_store_id",
				Reason: "required for key origin AWS_CLOUDHSM",
			}
		}
	case kmstypes.OriginTypeExternal:
		if spec == nil || spec.Material == "" {
			return "", "", &ConfigError{
				Field:  "setup.key_material",
				Reason: "required for key origin EXTERNAL",
			}
		}
		raw, decErr := base64.StdEncoding.DecodeString(spec.Material)
		if decErr != nil {
			return "", "", &ConfigError{Field: "setup.key_material", Reason: "not valid base64"}
		}
		material = raw
	}

	out, err := r.Session.KMS.CreateKey(ctx, input)
	if err != nil {
		return "", "", &ProvisioningError{Op: "kms key creation", Cause: err}
	}
	arn = aws.ToString(out.KeyMetadata.Arn)
	keyID = aws.ToString(out.KeyMetadata.KeyId)
	r.log().Info("created kms key", "key", arn, "origin", string(input.Origin))

	if input.Origin == kmstypes.OriginTypeExternal {
		if err := r.importKeyMaterial(ctx, keyID, material); err != nil {
			// A partial import is never safe; abort the whole run.
			return "", "", err
		}
	}

	return arn, keyID, nil
}

// followUps creates the alias and enables rotation after key creation.
// The key itself is durably committed at this point: failures here are
// reported, not rolled back.
func (r *Reconciler) followUps(ctx context.Context, keyID, aliasName string, spec *KeySpec) {
	if aliasName != "" {
		_, err := r.Session.KMS.CreateAlias(ctx, &kms.CreateAliasInput{
			AliasName:   aws.String(aliasName),
			TargetKeyId: aws.String(keyID),
		})
		if err != nil {
			r.log().Error("failed to create kms alias", "alias", aliasName, "error", err)
		} else {
			r.log().Info("created kms alias", "alias", aliasName, "key", keyID)
		}
	}

	if spec != nil && spec.EnableRotation {
		_, err := r.Session.KMS.EnableKeyRotation(ctx, &kms.EnableKeyRotationInput{
			KeyId: aws.String(keyID),
		})
		if err != nil {
			r.log().Error("failed to enable key rotation", "key", keyID, "error", err)
		} else {
			r.log().Info("enabled key rotation", "key", keyID)
		}
	}
}

// importKeyMaterial runs the EXTERNAL-origin exchange: fetch an import
// token and wrapping key, wrap the already-decoded material with RSA-OAEP
// and submit it with a never-expires policy.
func (r *Reconciler) importKeyMaterial(ctx context.Context, keyID string, material []byte) error {
	params, err := r.Session.KMS.GetParametersForImport(ctx, &kms.GetParametersForImportInput{
		KeyId:             aws.String(keyID),
		WrappingAlgorithm: kmstypes.AlgorithmSpecRsaesOaepSha256,
		WrappingKeySpec:   kmstypes.WrappingKeySpecRsa2048,
	})
	if err != nil {
		return &ProvisioningError{Op: "kms import parameter fetch", Cause: err}
	}

	wrapped, err := wrapKeyMaterial(params.PublicKey, material)
	if err != nil {
		return &ProvisioningError{Op: "key material wrapping", Cause: err}
	}

	_, err = r.Session.KMS.ImportKeyMaterial(ctx, &kms.ImportKeyMaterialInput{
		KeyId:                aws.String(keyID),
		ImportToken:          params.ImportToken,
		EncryptedKeyMaterial: wrapped,
		ExpirationModel:      kmstypes.ExpirationModelTypeKeyMaterialDoesNotExpire,
	})
	if err != nil {
		return &ProvisioningError{Op: "kms key material import", Cause: err}
	}

	r.log().Info("imported external key material", "key", keyID)
	return nil
}

// wrapKeyMaterial encrypts raw key material against the service-supplied
// wrapping public key with RSA-OAEP (SHA-256).
func wrapKeyMaterial(wrappingKey, material []byte) ([]byte, error) {
	pub, err := x509.ParsePKIXPublicKey(wrappingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse wrapping public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("wrapping public key is %T, want RSA", pub)
	}
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, rsaPub, material, nil)
}
