package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/ini.v1"
)

// Credentials-file field names (sections = profile names).
const (
	FieldOutput          = "output"
	FieldAccessKeyID     = "aws_access_key_id"
	FieldSecretAccessKey = "aws_secret_access_key"
	FieldSessionToken    = "aws_session_token"
	FieldExpiration      = "expiration"
	FieldRoleArn         = "aws_role_arn"
	FieldRegion          = "region"
)

// fieldOrder keeps written sections stable across runs.
var fieldOrder = []string{
	FieldOutput,
	FieldAccessKeyID,
	FieldSecretAccessKey,
	FieldSessionToken,
	FieldExpiration,
	FieldRoleArn,
	FieldRegion,
}

// Profile is one named credential record in the shared credentials file.
type Profile struct {
	Name            string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      string
	RoleArn         string
	Region          string
}

// ProfileStore reads and writes named credential profiles in an ini-style
// credentials file. Writing a profile replaces its whole section, so stale
// fields from a previous run never survive a refresh.
//
// The file is a shared mutable resource with no locking; concurrent writers
// to the same file race. The tool is meant for single-operator or
// sequential-CI use.
type ProfileStore struct {
	Path string
}

// Read returns the value of one key in one profile section. A missing
// file, section or key reads as absent; any other I/O error is returned.
func (s *ProfileStore) Read(profile, key string) (string, bool, error) {
	f, err := ini.Load(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read credentials file %s: %w", s.Path, err)
	}

	sec, err := f.GetSection(profile)
	if err != nil {
		return "", false, nil
	}
	if !sec.HasKey(key) {
		return "", false, nil
	}
	return sec.Key(key).String(), true, nil
}

// Write replaces the named section with exactly the supplied fields plus a
// fixed output=json field. Empty values are dropped rather than written.
func (s *ProfileStore) Write(profile string, fields map[string]string) error {
	f, err := ini.LooseLoad(s.Path)
	if err != nil {
		return fmt.Errorf("failed to read credentials file %s: %w", s.Path, err)
	}

	f.DeleteSection(profile)
	sec, err := f.NewSection(profile)
	if err != nil {
		return fmt.Errorf("failed to create profile section %s: %w", profile, err)
	}

	if _, err := sec.NewKey(FieldOutput, "json"); err != nil {
		return err
	}
	for _, name := range orderedFields(fields) {
		if fields[name] == "" || name == FieldOutput {
			continue
		}
		if _, err := sec.NewKey(name, fields[name]); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	out, err := os.OpenFile(s.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open credentials file %s: %w", s.Path, err)
	}
	defer out.Close()
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write credentials file %s: %w", s.Path, err)
	}
	return nil
}

// WriteProfile stores the full record, replacing any prior section content.
func (s *ProfileStore) WriteProfile(p *Profile) error {
	return s.Write(p.Name, map[string]string{
		FieldAccessKeyID:     p.AccessKeyID,
		FieldSecretAccessKey: p.SecretAccessKey,
		FieldSessionToken:    p.SessionToken,
		FieldExpiration:      p.Expiration,
		FieldRoleArn:         p.RoleArn,
		FieldRegion:          p.Region,
	})
}

// ReadProfile loads the full record. A completely absent profile returns
// (nil, nil).
func (s *ProfileStore) ReadProfile(name string) (*Profile, error) {
	f, err := ini.Load(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credentials file %s: %w", s.Path, err)
	}

	sec, err := f.GetSection(name)
	if err != nil {
		return nil, nil
	}

	return &Profile{
		Name:            name,
		AccessKeyID:     sec.Key(FieldAccessKeyID).String(),
		SecretAccessKey: sec.Key(FieldSecretAccessKey).String(),
		SessionToken:    sec.Key(FieldSessionToken).String(),
		Expiration:      sec.Key(FieldExpiration).String(),
		RoleArn:         sec.Key(FieldRoleArn).String(),
		Region:          sec.Key(FieldRegion).String(),
	}, nil
}

// orderedFields returns the known fields first in canonical order, then any
// extras sorted by name.
func orderedFields(fields map[string]string) []string {
	seen := make(map[string]bool, len(fieldOrder))
	var names []string
	for _, name := range fieldOrder {
		if _, ok := fields[name]; ok {
			names = append(names, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range fields {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}
