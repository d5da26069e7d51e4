package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/y0ug/hashscan/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeEnumerator serves canned listings keyed by root.
type fakeEnumerator struct {
	entries map[string][]FileEntry
}

func (f *fakeEnumerator) Enumerate(ctx context.Context, root string, opts EnumerateOptions) ([]FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, ok := f.entries[root]
	if !ok {
		return nil, fmt.Errorf("stat %s: no such file or directory", root)
	}
	return entries, nil
}

type fakeVersionProvider struct {
	info *models.VersionInfo
	err  error
}

func (f *fakeVersionProvider) VersionInfo(path string) (*models.VersionInfo, error) {
	return f.info, f.err
}

type fakeCertificateProvider struct {
	info *models.CertificateInfo
	err  error
}

func (f *fakeCertificateProvider) CertificateInfo(path string) (*models.CertificateInfo, error) {
	return f.info, f.err
}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestComputeSignatures(t *testing.T) {
	dir := t.TempDir()
	topContent := []byte("top-level payload\n")
	nestedContent := []byte("nested payload\n")
	writeFile(t, dir, "Upper.TXT", topContent)
	writeFile(t, dir, filepath.Join("sub", "Nested.bin"), nestedContent)

	scanner := NewScanner(nil, testLogger(), 2)
	result, err := scanner.ComputeSignatures(context.Background(), []string{dir}, ScanOptions{Recurse: true})
	if err != nil {
		t.Fatalf("ComputeSignatures: %v", err)
	}
	if result.Partial {
		t.Fatal("unexpected partial result")
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}

	byName := make(map[string]models.SignatureRecord)
	for _, record := range result.Records {
		byName[record.Filename] = record
	}

	top, ok := byName["upper.txt"]
	if !ok {
		t.Fatalf("missing lowercased record for Upper.TXT, have %v", byName)
	}
	if top.FullPath != "" {
		t.Errorf("FullPath should be empty by default, got %q", top.FullPath)
	}
	if top.RelativePath != "Upper.TXT" {
		t.Errorf("RelativePath = %q, want %q", top.RelativePath, "Upper.TXT")
	}
	if top.SizeBytes != uint64(len(topContent)) {
		t.Errorf("SizeBytes = %d, want %d", top.SizeBytes, len(topContent))
	}

	wantDigests, err := ComputeDigests(bytes.NewReader(topContent), models.Algorithms)
	if err != nil {
		t.Fatalf("ComputeDigests: %v", err)
	}
	for algo, want := range wantDigests {
		if got := top.Digests[algo]; got != want {
			t.Errorf("%s digest = %s, want %s", algo, got, want)
		}
	}

	nested, ok := byName["nested.bin"]
	if !ok {
		t.Fatal("missing record for sub/Nested.bin")
	}
	wantRel := filepath.Join("sub", "Nested.bin")
	if nested.RelativePath != wantRel {
		t.Errorf("RelativePath = %q, want %q", nested.RelativePath, wantRel)
	}

	if result.Stats.FilesProcessed != 2 {
		t.Errorf("FilesProcessed = %d, want 2", result.Stats.FilesProcessed)
	}
	if result.Stats.FilesSkipped != 0 {
		t.Errorf("FilesSkipped = %d, want 0", result.Stats.FilesSkipped)
	}
}

func TestComputeSignaturesSkipsZeroLengthAndUnreadable(t *testing.T) {
	dir := t.TempDir()
	goodPath := writeFile(t, dir, "good.bin", []byte("payload"))

	enumerator := &fakeEnumerator{entries: map[string][]FileEntry{
		"/scan": {
			{FullPath: goodPath, Name: "good.bin", SizeBytes: 7},
			{FullPath: filepath.Join(dir, "empty.bin"), Name: "empty.bin", SizeBytes: 0},
			{FullPath: filepath.Join(dir, "vanished.bin"), Name: "vanished.bin", SizeBytes: 9},
		},
	}}

	scanner := NewScanner(enumerator, testLogger(), 2)
	result, err := scanner.ComputeSignatures(context.Background(), []string{"/scan"}, ScanOptions{})
	if err != nil {
		t.Fatalf("ComputeSignatures: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	if result.Records[0].Filename != "good.bin" {
		t.Errorf("Filename = %q, want good.bin", result.Records[0].Filename)
	}
	if result.Stats.FilesProcessed != 1 {
		t.Errorf("FilesProcessed = %d, want 1", result.Stats.FilesProcessed)
	}
	if result.Stats.FilesSkipped != 2 {
		t.Errorf("FilesSkipped = %d, want 2", result.Stats.FilesSkipped)
	}
}

func TestComputeSignaturesIncludeRootPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tool.exe", []byte("binary"))

	scanner := NewScanner(nil, testLogger(), 1)
	result, err := scanner.ComputeSignatures(context.Background(), []string{dir}, ScanOptions{IncludeRootPath: true})
	if err != nil {
		t.Fatalf("ComputeSignatures: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	if result.Records[0].FullPath != path {
		t.Errorf("FullPath = %q, want %q", result.Records[0].FullPath, path)
	}
}

func TestComputeSignaturesMetadataProviders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.dll", []byte("module"))

	scanner := NewScanner(nil, testLogger(), 1)
	scanner.Versions = &fakeVersionProvider{info: &models.VersionInfo{Product: "Example", FileVersion: "1.2.3"}}
	scanner.Certificates = &fakeCertificateProvider{err: fmt.Errorf("not signed")}

	opts := ScanOptions{IncludeVersionData: true, IncludeCertificateData: true}
	result, err := scanner.ComputeSignatures(context.Background(), []string{dir}, opts)
	if err != nil {
		t.Fatalf("ComputeSignatures: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	record := result.Records[0]
	if record.Version == nil || record.Version.Product != "Example" {
		t.Errorf("Version = %+v, want Product Example", record.Version)
	}
	if record.Certificate != nil {
		t.Errorf("Certificate should stay nil when the provider fails, got %+v", record.Certificate)
	}
}

func TestComputeSignaturesNoValidPaths(t *testing.T) {
	scanner := NewScanner(&fakeEnumerator{}, testLogger(), 1)
	_, err := scanner.ComputeSignatures(context.Background(), []string{"/does/not/exist"}, ScanOptions{})
	if err == nil {
		t.Fatal("expected an error when no path is scannable")
	}
}

func TestComputeSignaturesCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.bin", []byte("payload"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := NewScanner(nil, testLogger(), 1)
	result, err := scanner.ComputeSignatures(ctx, []string{dir}, ScanOptions{})
	if err != nil {
		t.Fatalf("cancellation must not surface as an error, got %v", err)
	}
	if !result.Partial {
		t.Fatal("expected a partial result after cancellation")
	}
	if len(result.Records) != 0 {
		t.Errorf("expected no records, got %d", len(result.Records))
	}
}

func TestRunStatsAverages(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	stats := RunStats{
		StartedAt:      start,
		FinishedAt:     start.Add(4 * time.Second),
		FilesProcessed: 4,
	}
	if stats.Elapsed() != 4*time.Second {
		t.Errorf("Elapsed = %s, want 4s", stats.Elapsed())
	}
	if stats.AveragePerFile() != time.Second {
		t.Errorf("AveragePerFile = %s, want 1s", stats.AveragePerFile())
	}

	var empty RunStats
	if empty.AveragePerFile() != 0 {
		t.Errorf("AveragePerFile on empty stats = %s, want 0", empty.AveragePerFile())
	}
}
