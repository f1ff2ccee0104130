// Package config handles the s3mirror.yaml declaration: a templated YAML
// document describing the credential source, the bucket and key to
// maintain, and the directories to mirror.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fluxcd/pkg/envsubst"
	"gopkg.in/yaml.v3"

	"github.com/chukul/s3mirror/internal"
)

// Config is the declared configuration for one run. It is read-only
// input: nothing in the pipeline mutates it.
type Config struct {
	AWS      AWSConfig    `yaml:"aws"`
	S3       S3Config     `yaml:"s3"`
	Setup    *SetupConfig `yaml:"setup,omitempty"`
	Files    []Source     `yaml:"files"`
	SafeMode bool         `yaml:"safe_mode"`
}

// AWSConfig selects the credential source and the role to assume.
type AWSConfig struct {
	Region             string `yaml:"region"`
	Profile            string `yaml:"profile,omitempty"`
	AccessKeyID        string `yaml:"access_key_id,omitempty"`
	SecretAccessKey    string `yaml:"secret_access_key,omitempty"`
	AssumeRole         string `yaml:"assume_role,omitempty"`
	AssumeRoleDuration int32  `yaml:"assume_role_duration,omitempty"`
}

// S3Config declares the bucket and its encryption posture.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	KMSKeyID string `yaml:"kms_key_id,omitempty"`
	SSE      string `yaml:"sse,omitempty"`
	BasePath string `yaml:"base_path,omitempty"`
}

// SetupConfig declares how missing resources are created.
type SetupConfig struct {
	KeyOrigin         string `yaml:"key_origin,omitempty"`
	KeyStoreID        string `yaml:"key_store_id,omitempty"`
	KeyPolicy         string `yaml:"key_policy,omitempty"`
	KeyMaterial       string `yaml:"key_material,omitempty"`
	EnableKeyRotation bool   `yaml:"enable_key_rotation,omitempty"`
	BucketPolicy      string `yaml:"bucket_policy,omitempty"`
}

// Source is one directory to mirror. In YAML it is either a bare path
// string or a mapping with path and extra_options (itself either a list
// or one space-separated string).
type Source struct {
	Path         string
	ExtraOptions []string
}

// UnmarshalYAML implements the tagged variant: "path" | {path, extra_options}.
func (s *Source) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&s.Path)

	case yaml.MappingNode:
		var raw struct {
			Path         string    `yaml:"path"`
			ExtraOptions yaml.Node `yaml:"extra_options"`
		}
		if err := value.Decode(&raw); err != nil {
			return err
		}
		s.Path = raw.Path
		if raw.ExtraOptions.Kind == 0 { // absent
			return nil
		}
		var v any
		if err := raw.ExtraOptions.Decode(&v); err != nil {
			return err
		}
		opts, err := internal.ParseExtraOptions(v)
		if err != nil {
			return fmt.Errorf("line %d: %w", raw.ExtraOptions.Line, err)
		}
		s.ExtraOptions = opts
		return nil

	default:
		return fmt.Errorf("files entry must be a path string or a mapping (line %d)", value.Line)
	}
}

// Load reads the file, expands ${VAR} environment references and decodes
// the document strictly, then validates it in full.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	expanded, err := envsubst.EvalEnv(string(raw), false)
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment references in %s: %w", path, err)
	}

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Key origins accepted for setup.key_origin.
var validOrigins = map[string]bool{
	"":             true, // defaults to AWS_KMS
	"AWS_KMS":      true,
	"AWS_CLOUDHSM": true,
	"EXTERNAL":     true,
}

// Validate checks the whole document and reports every problem at once,
// not just the first.
func (c *Config) Validate() error {
	var problems []error

	add := func(field, reason string) {
		problems = append(problems, fmt.Errorf("%s: %s", field, reason))
	}

	hasKey := c.AWS.AccessKeyID != ""
	hasSecret := c.AWS.SecretAccessKey != ""
	if hasKey != hasSecret {
		add("aws.access_key_id/aws.secret_access_key", "both must be set together, or neither")
	}
	if c.AWS.Profile != "" && hasKey {
		add("aws.profile", "mutually exclusive with an explicit access key pair")
	}
	if c.AWS.Region == "" {
		add("aws.region", "required")
	}

	if c.S3.Bucket == "" {
		add("s3.bucket", "required")
	}
	switch c.S3.SSE {
	case "", "AES256", "aws:kms":
	default:
		add("s3.sse", fmt.Sprintf("must be AES256 or aws:kms, got %q", c.S3.SSE))
	}

	if c.Setup != nil {
		if !validOrigins[c.Setup.KeyOrigin] {
			add("setup.key_origin", fmt.Sprintf("must be AWS_KMS, AWS_CLOUDHSM or EXTERNAL, got %q", c.Setup.KeyOrigin))
		}
		if c.Setup.KeyOrigin == "AWS_CLOUDHSM" && c.Setup.KeyStoreID == "" {
			add("setup.key_store_id", "required for key origin AWS_CLOUDHSM")
		}
		if c.Setup.KeyOrigin == "EXTERNAL" && c.Setup.KeyMaterial == "" {
			add("setup.key_material", "required for key origin EXTERNAL")
		}
	}

	seen := make(map[string]bool, len(c.Files))
	for i, f := range c.Files {
		if f.Path == "" {
			add(fmt.Sprintf("files[%d].path", i), "required")
			continue
		}
		if seen[f.Path] {
			add(fmt.Sprintf("files[%d].path", i), fmt.Sprintf("duplicate source %q", f.Path))
		}
		seen[f.Path] = true
	}

	return errors.Join(problems...)
}
