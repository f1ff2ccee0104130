package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"strings"
)

// Runner executes an external command to completion. It exists so tests
// can capture the assembled argument lists instead of spawning processes.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec, streams wired to the terminal.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// SyncSource is one local directory to mirror, optionally with extra
// arguments for the sync tool.
type SyncSource struct {
	Path         string
	ExtraOptions []string
}

// Syncer mirrors local directories into the bucket by invoking the
// external sync tool once per source. Each source fails independently.
type Syncer struct {
	Bucket   string
	BasePath string
	// SSE and KeyARN mirror the bucket's configured default encryption so
	// uploaded objects match the declared posture.
	SSE    string
	KeyARN string

	// Profile is the credential profile the sync tool should use.
	Profile string

	Runner Runner
	Log    *slog.Logger

	// Tool overrides the sync command name; defaults to "aws".
	Tool string

	// WorkDir and HomeDir override prefix stripping roots in tests.
	WorkDir string
	HomeDir string
}

func (s *Syncer) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// SyncAll mirrors every source in order and returns how many failed.
// A missing local path is logged and skipped; it never aborts the
// remaining sources.
func (s *Syncer) SyncAll(ctx context.Context, sources []SyncSource) int {
	failed := 0
	for _, src := range sources {
		if err := s.syncOne(ctx, src); err != nil {
			s.log().Error("sync failed", "path", src.Path, "error", err)
			failed++
		}
	}
	return failed
}

func (s *Syncer) syncOne(ctx context.Context, src SyncSource) error {
	if _, err := os.Stat(src.Path); err != nil {
		s.log().Error("source path does not exist, skipping", "path", src.Path)
		return nil
	}

	dest := s.Destination(src.Path)
	args := s.buildArgs(src, dest)

	tool := s.Tool
	if tool == "" {
		tool = "aws"
	}

	s.log().Info("syncing", "source", src.Path, "dest", dest)
	if err := s.Runner.Run(ctx, tool, args...); err != nil {
		return fmt.Errorf("sync tool failed for %s: %w", src.Path, err)
	}
	return nil
}

// buildArgs assembles the external tool invocation: encryption flags
// matching the bucket's configured mode, then any extra options.
func (s *Syncer) buildArgs(src SyncSource, dest string) []string {
	args := []string{"s3", "sync", src.Path, dest}

	switch s.SSE {
	case SSEAES256:
		args = append(args, "--sse", "AES256")
	case SSEKMS:
		args = append(args, "--sse", "aws:kms")
		if s.KeyARN != "" {
			args = append(args, "--sse-kms-key-id", s.KeyARN)
		}
	}

	if s.Profile != "" {
		args = append(args, "--profile", s.Profile)
	}

	args = append(args, src.ExtraOptions...)
	return args
}

// Destination derives the remote path for a source: the working directory
// and the home directory are stripped from the local path, and what
// remains lands under the bucket's base path.
func (s *Syncer) Destination(srcPath string) string {
	rel := srcPath

	wd := s.WorkDir
	if wd == "" {
		wd, _ = os.Getwd()
	}
	home := s.HomeDir
	if home == "" {
		home, _ = os.UserHomeDir()
	}

	if wd != "" {
		rel = strings.TrimPrefix(rel, wd)
	}
	if home != "" {
		rel = strings.TrimPrefix(rel, home)
	}
	rel = strings.TrimLeft(rel, "/")

	key := rel
	if base := strings.Trim(s.BasePath, "/"); base != "" {
		key = path.Join(base, rel)
	}
	return "s3://" + path.Join(s.Bucket, key)
}

// ParseExtraOptions accepts either a literal argument list or a single
// space-separated string.
func ParseExtraOptions(v any) ([]string, error) {
	switch opts := v.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.Fields(opts), nil
	case []string:
		return opts, nil
	case []any:
		out := make([]string, 0, len(opts))
		for _, o := range opts {
			str, ok := o.(string)
			if !ok {
				return nil, &ConfigError{Field: "files.extra_options", Reason: fmt.Sprintf("expected string, got %T", o)}
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, &ConfigError{Field: "files.extra_options", Reason: fmt.Sprintf("expected list or string, got %T", v)}
	}
}
