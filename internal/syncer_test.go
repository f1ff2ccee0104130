package internal

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

type fakeRunner struct {
	calls [][]string
	// failOn marks source paths whose invocation should fail.
	failOn map[string]bool
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	if len(args) >= 3 && f.failOn[args[2]] {
		return errors.New("exit status 1")
	}
	return nil
}

func testSyncer(t *testing.T, runner *fakeRunner) *Syncer {
	t.Helper()
	return &Syncer{
		Bucket:   "backup-bucket",
		BasePath: "machines/laptop",
		Profile:  "s3mirror",
		Runner:   runner,
		WorkDir:  "/work",
		HomeDir:  "/home/user",
	}
}

func TestSyncAllInvokesToolPerSource(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	runner := &fakeRunner{}
	s := testSyncer(t, runner)

	failed := s.SyncAll(context.Background(), []SyncSource{{Path: dir1}, {Path: dir2}})
	if failed != 0 {
		t.Fatalf("failed = %d, want 0", failed)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("runner calls = %d, want 2", len(runner.calls))
	}
	for _, call := range runner.calls {
		if call[0] != "aws" || call[1] != "s3" || call[2] != "sync" {
			t.Errorf("unexpected invocation prefix: %v", call[:3])
		}
	}
}

func TestMissingSourceIsSkippedNotFailed(t *testing.T) {
	present := t.TempDir()
	runner := &fakeRunner{}
	s := testSyncer(t, runner)

	failed := s.SyncAll(context.Background(), []SyncSource{
		{Path: filepath.Join(present, "does-not-exist")},
		{Path: present},
	})
	if failed != 0 {
		t.Errorf("missing path must not count as a failure, failed = %d", failed)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("runner calls = %d, want 1 (missing path skipped)", len(runner.calls))
	}
	if runner.calls[0][3] != present {
		t.Errorf("surviving source = %q, want %q", runner.calls[0][3], present)
	}
}

func TestFailedSourceDoesNotAbortRemaining(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	runner := &fakeRunner{failOn: map[string]bool{dir1: true}}
	s := testSyncer(t, runner)

	failed := s.SyncAll(context.Background(), []SyncSource{{Path: dir1}, {Path: dir2}})
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if len(runner.calls) != 2 {
		t.Errorf("runner calls = %d, want 2 (failure must not abort)", len(runner.calls))
	}
}

func TestBuildArgsEncryptionFlags(t *testing.T) {
	src := SyncSource{Path: "/work/docs"}

	cases := []struct {
		name   string
		sse    string
		keyARN string
		want   []string
	}{
		{
			name: "no sse",
			want: []string{"s3", "sync", "/work/docs", "s3://b/docs", "--profile", "p"},
		},
		{
			name: "aes256",
			sse:  SSEAES256,
			want: []string{"s3", "sync", "/work/docs", "s3://b/docs", "--sse", "AES256", "--profile", "p"},
		},
		{
			name:   "kms with key",
			sse:    SSEKMS,
			keyARN: "arn:aws:kms:ap-southeast-1:123456789012:key/k",
			want: []string{"s3", "sync", "/work/docs", "s3://b/docs",
				"--sse", "aws:kms", "--sse-kms-key-id", "arn:aws:kms:ap-southeast-1:123456789012:key/k",
				"--profile", "p"},
		},
		{
			name: "kms without key",
			sse:  SSEKMS,
			want: []string{"s3", "sync", "/work/docs", "s3://b/docs", "--sse", "aws:kms", "--profile", "p"},
		},
	}

	for _, c := range cases {
		s := &Syncer{Bucket: "b", SSE: c.sse, KeyARN: c.keyARN, Profile: "p"}
		got := s.buildArgs(src, "s3://b/docs")
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("%s: args = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestBuildArgsAppendsExtraOptions(t *testing.T) {
	s := &Syncer{Bucket: "b"}
	src := SyncSource{Path: "/data", ExtraOptions: []string{"--delete", "--exclude", "*.tmp"}}
	got := s.buildArgs(src, "s3://b/data")
	want := []string{"s3", "sync", "/data", "s3://b/data", "--delete", "--exclude", "*.tmp"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("args = %v, want %v", got, want)
	}
}

func TestDestinationDerivation(t *testing.T) {
	s := &Syncer{
		Bucket:   "backup-bucket",
		BasePath: "machines/laptop",
		WorkDir:  "/work/project",
		HomeDir:  "/home/user",
	}

	cases := []struct {
		src  string
		want string
	}{
		{"/work/project/docs", "s3://backup-bucket/machines/laptop/docs"},
		{"/home/user/notes", "s3://backup-bucket/machines/laptop/notes"},
		{"/var/lib/data", "s3://backup-bucket/machines/laptop/var/lib/data"},
		{"/work/project/a/b/c", "s3://backup-bucket/machines/laptop/a/b/c"},
	}
	for _, c := range cases {
		if got := s.Destination(c.src); got != c.want {
			t.Errorf("Destination(%q) = %q, want %q", c.src, got, c.want)
		}
	}
}

func TestDestinationWithoutBasePath(t *testing.T) {
	s := &Syncer{Bucket: "b", WorkDir: "/work", HomeDir: "/home/user"}
	if got := s.Destination("/work/docs"); got != "s3://b/docs" {
		t.Errorf("Destination = %q, want s3://b/docs", got)
	}
}

func TestCustomToolName(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}
	s := testSyncer(t, runner)
	s.Tool = "awscliv2"

	s.SyncAll(context.Background(), []SyncSource{{Path: dir}})
	if len(runner.calls) != 1 || runner.calls[0][0] != "awscliv2" {
		t.Errorf("tool = %v, want awscliv2", runner.calls)
	}
}

func TestParseExtraOptions(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want []string
		err  bool
	}{
		{name: "nil", in: nil, want: nil},
		{name: "string", in: "--delete --exclude *.git", want: []string{"--delete", "--exclude", "*.git"}},
		{name: "string slice", in: []string{"--delete"}, want: []string{"--delete"}},
		{name: "any slice", in: []any{"--delete", "--quiet"}, want: []string{"--delete", "--quiet"}},
		{name: "any slice with non-string", in: []any{"--delete", 7}, err: true},
		{name: "unsupported type", in: 42, err: true},
	}

	for _, c := range cases {
		got, err := ParseExtraOptions(c.in)
		if c.err {
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("%s: expected *ConfigError, got %v", c.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", c.name, err)
			continue
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}
