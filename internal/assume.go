package internal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// expiryMargin is the safety window before expiration under which a cached
// session is no longer trusted: downstream operations must not race an
// imminent expiry.
const expiryMargin = 90 * time.Second

// Role-assumption duration bounds accepted by the service. A configured
// duration outside this range is omitted so the service default applies.
const (
	minAssumeDuration = 900
	maxAssumeDuration = 43200
)

// RoleRequest describes one role-assumption exchange and where to cache
// its result.
type RoleRequest struct {
	RoleArn         string
	SessionName     string
	DurationSeconds int32
	Region          string
	TempProfile     string

	// Force bypasses the cache checks and always re-assumes.
	Force bool
}

// Lifecycle decides whether a cached role session is still usable and
// performs a fresh assumption when it is not.
type Lifecycle struct {
	Store *ProfileStore
	Log   *slog.Logger

	// Now is the clock; tests override it.
	Now func() time.Time
}

func (l *Lifecycle) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Lifecycle) logger() *slog.Logger {
	if l.Log != nil {
		return l.Log
	}
	return slog.Default()
}

// EnsureRoleSession returns a session for the requested role, reusing the
// cached temp profile when it still matches the role and is comfortably
// inside its validity window, and re-assuming otherwise.
func (l *Lifecycle) EnsureRoleSession(ctx context.Context, base *Session, req RoleRequest) (*Session, error) {
	if req.Force {
		l.logger().Debug("forcing role assumption", "role", req.RoleArn)
		return l.assume(ctx, base, req)
	}

	storedExp, hasExp, err := l.Store.Read(req.TempProfile, FieldExpiration)
	if err != nil {
		return nil, err
	}
	storedRole, hasRole, err := l.Store.Read(req.TempProfile, FieldRoleArn)
	if err != nil {
		return nil, err
	}

	// No cached role session at all.
	if !hasExp && !hasRole {
		l.logger().Debug("no cached session", "profile", req.TempProfile)
		return l.assume(ctx, base, req)
	}

	roleArn, err := l.resolveRoleArn(ctx, base, req.RoleArn)
	if err != nil {
		return nil, err
	}

	// The cached session belongs to a different role; it cannot be
	// reused here.
	if storedRole != roleArn {
		l.logger().Debug("cached session is for another role",
			"cached", storedRole, "requested", roleArn)
		return l.assume(ctx, base, req)
	}

	// role_arn and expiration are written together; a section holding
	// only one of them is a broken cache.
	if !hasExp {
		return l.assume(ctx, base, req)
	}

	expiry, err := ParseExpiration(storedExp)
	if err != nil {
		return nil, err
	}

	remaining := RemainingValidity(expiry, l.now())
	if remaining <= 0 {
		l.logger().Debug("cached session expired", "profile", req.TempProfile)
		return l.assume(ctx, base, req)
	}
	if remaining < expiryMargin {
		l.logger().Debug("cached session about to expire",
			"profile", req.TempProfile, "remaining", remaining)
		return l.assume(ctx, base, req)
	}

	l.logger().Info("reusing cached session",
		"profile", req.TempProfile, "remaining", formatRemaining(remaining))
	return l.reuse(ctx, base, req)
}

// reuse reconstructs a session from the stored temporary credentials
// without calling the assumption API.
func (l *Lifecycle) reuse(ctx context.Context, base *Session, req RoleRequest) (*Session, error) {
	p, err := l.Store.ReadProfile(req.TempProfile)
	if err != nil {
		return nil, err
	}
	if p == nil || p.AccessKeyID == "" || p.SecretAccessKey == "" {
		// The section lost its secrets between the check and now; fall
		// back to a fresh assumption.
		return l.assume(ctx, base, req)
	}
	region := p.Region
	if region == "" {
		region = req.Region
	}
	return sessionFromStatic(ctx, p.AccessKeyID, p.SecretAccessKey, p.SessionToken, region)
}

// assume performs the role-assumption exchange with the base session and
// persists the returned temporary credentials, fully replacing the temp
// profile.
func (l *Lifecycle) assume(ctx context.Context, base *Session, req RoleRequest) (*Session, error) {
	if base == nil {
		return nil, &ConfigError{Field: "aws", Reason: "no base session available to assume the role"}
	}

	roleArn, err := l.resolveRoleArn(ctx, base, req.RoleArn)
	if err != nil {
		return nil, err
	}

	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleArn),
		RoleSessionName: aws.String(req.SessionName),
	}
	if req.DurationSeconds >= minAssumeDuration && req.DurationSeconds <= maxAssumeDuration {
		input.DurationSeconds = aws.Int32(req.DurationSeconds)
	}

	out, err := base.STS.AssumeRole(ctx, input)
	if err != nil {
		// Assumption failures are configuration or permission problems,
		// never transient; surface them untouched.
		return nil, err
	}

	creds := out.Credentials
	expiration := aws.ToTime(creds.Expiration)

	err = l.Store.WriteProfile(&Profile{
		Name:            req.TempProfile,
		AccessKeyID:     aws.ToString(creds.AccessKeyId),
		SecretAccessKey: aws.ToString(creds.SecretAccessKey),
		SessionToken:    aws.ToString(creds.SessionToken),
		Expiration:      FormatExpiration(expiration),
		RoleArn:         roleArn,
		Region:          req.Region,
	})
	if err != nil {
		return nil, err
	}

	remaining := RemainingValidity(expiration, l.now())
	l.logger().Info("assumed role",
		"role", roleArn, "profile", req.TempProfile, "valid_for", formatRemaining(remaining))

	return sessionFromStatic(ctx,
		aws.ToString(creds.AccessKeyId),
		aws.ToString(creds.SecretAccessKey),
		aws.ToString(creds.SessionToken),
		req.Region,
	)
}

// resolveRoleArn passes fully-qualified role ARNs through and otherwise
// builds one from the calling identity's account.
func (l *Lifecycle) resolveRoleArn(ctx context.Context, base *Session, role string) (string, error) {
	if strings.HasPrefix(role, "arn:") {
		return role, nil
	}
	if base == nil {
		return "", &ConfigError{Field: "aws.assume_role", Reason: "cannot resolve short role name without a base session"}
	}
	ident, err := base.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to look up caller identity: %w", err)
	}
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", aws.ToString(ident.Account), role), nil
}

// formatRemaining renders a validity window as h/m/s for the logs.
func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
