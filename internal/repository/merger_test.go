package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/y0ug/hashscan/internal/models"
)

// fakeFetcher serves canned repository responses keyed by digest.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string][]map[string]any
	failures  map[string]error
	calls     []string
}

func (f *fakeFetcher) FetchMatches(ctx context.Context, digest string) ([]map[string]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, digest)
	f.mu.Unlock()
	if err, ok := f.failures[digest]; ok {
		return nil, err
	}
	return f.responses[digest], nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func sigWithDigests(name string, digests map[models.Algorithm]string) models.SignatureRecord {
	return models.SignatureRecord{Filename: name, Digests: digests}
}

func TestLookupPartitionsMatchedFirst(t *testing.T) {
	digestA := strings.Repeat("A", 32)
	digestB := strings.Repeat("B", 32)
	digestC := strings.Repeat("C", 32)

	fetcher := &fakeFetcher{responses: map[string][]map[string]any{
		digestA: {
			{"product": "Windows 10", "os": "10.0"},
			{"product": "Windows 11", "os": "11.0"},
		},
		digestB: {},
		digestC: {
			{"product": "Server 2019"},
		},
	}}

	signatures := []models.SignatureRecord{
		sigWithDigests("a.exe", map[models.Algorithm]string{models.MD5: digestA}),
		sigWithDigests("b.exe", map[models.Algorithm]string{models.MD5: digestB}),
		sigWithDigests("c.exe", map[models.Algorithm]string{models.MD5: digestC}),
	}

	merger := NewMerger(fetcher, testLogger(), 4)
	result, err := merger.Lookup(context.Background(), signatures, LookupOptions{})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if result.Partial {
		t.Fatal("unexpected partial result")
	}
	if len(result.Records) != 4 {
		t.Fatalf("expected 4 rows (2+1 matched, 1 no-match), got %d", len(result.Records))
	}

	wantOrder := []struct {
		filename string
		matched  bool
	}{
		{"a.exe", true},
		{"a.exe", true},
		{"c.exe", true},
		{"b.exe", false},
	}
	for i, want := range wantOrder {
		row := result.Records[i]
		if row.Signature.Filename != want.filename || row.Matched != want.matched {
			t.Errorf("row %d = (%s, matched=%v), want (%s, matched=%v)",
				i, row.Signature.Filename, row.Matched, want.filename, want.matched)
		}
	}

	if result.Records[0].Repository["product"] != "Windows 10" {
		t.Errorf("matched row attributes = %v, want the first repository object", result.Records[0].Repository)
	}
	if result.Records[3].Repository != nil {
		t.Errorf("no-match row should carry no attributes, got %v", result.Records[3].Repository)
	}
}

func TestLookupSkipsPairsWithoutDigest(t *testing.T) {
	fetcher := &fakeFetcher{}
	signatures := []models.SignatureRecord{
		sigWithDigests("empty.exe", nil),
		sigWithDigests("blank.exe", map[models.Algorithm]string{models.MD5: ""}),
	}

	merger := NewMerger(fetcher, testLogger(), 2)
	result, err := merger.Lookup(context.Background(), signatures, LookupOptions{})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(result.Records) != 0 {
		t.Errorf("expected no rows, got %d", len(result.Records))
	}
	if fetcher.callCount() != 0 {
		t.Errorf("expected no repository requests, got %d", fetcher.callCount())
	}
}

func TestLookupFailureYieldsNoMatchRow(t *testing.T) {
	digest := strings.Repeat("E", 32)
	fetcher := &fakeFetcher{failures: map[string]error{
		digest: fmt.Errorf("signature repository returned status: 503"),
	}}
	signatures := []models.SignatureRecord{
		sigWithDigests("flaky.exe", map[models.Algorithm]string{models.MD5: digest}),
	}

	merger := NewMerger(fetcher, testLogger(), 1)
	result, err := merger.Lookup(context.Background(), signatures, LookupOptions{})
	if err != nil {
		t.Fatalf("lookup failures must not abort the run, got %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 no-match row, got %d rows", len(result.Records))
	}
	if result.Records[0].Matched {
		t.Error("failed pair should be recorded as no-match")
	}
}

func TestLookupDefaultAlgorithmsIsMD5(t *testing.T) {
	md5Digest := strings.Repeat("1", 32)
	sha1Digest := strings.Repeat("2", 40)
	fetcher := &fakeFetcher{responses: map[string][]map[string]any{}}

	signatures := []models.SignatureRecord{
		sigWithDigests("both.exe", map[models.Algorithm]string{
			models.MD5:  md5Digest,
			models.SHA1: sha1Digest,
		}),
	}

	merger := NewMerger(fetcher, testLogger(), 1)
	if _, err := merger.Lookup(context.Background(), signatures, LookupOptions{}); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("expected 1 request, got %d", fetcher.callCount())
	}
	if fetcher.calls[0] != md5Digest {
		t.Errorf("queried digest = %s, want the MD5 digest", fetcher.calls[0])
	}
}

func TestLookupMultipleAlgorithms(t *testing.T) {
	md5Digest := strings.Repeat("3", 32)
	sha256Digest := strings.Repeat("4", 64)
	fetcher := &fakeFetcher{responses: map[string][]map[string]any{
		md5Digest:    {{"source": "md5"}},
		sha256Digest: {{"source": "sha256"}},
	}}

	signatures := []models.SignatureRecord{
		sigWithDigests("multi.exe", map[models.Algorithm]string{
			models.MD5:    md5Digest,
			models.SHA256: sha256Digest,
		}),
	}

	merger := NewMerger(fetcher, testLogger(), 2)
	result, err := merger.Lookup(context.Background(), signatures, LookupOptions{
		Algorithms: []models.Algorithm{models.MD5, models.SHA256},
	})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Records))
	}
	if result.Records[0].Algorithm != models.MD5 || result.Records[1].Algorithm != models.SHA256 {
		t.Errorf("rows carry algorithms %s, %s; want MD5 then SHA256",
			result.Records[0].Algorithm, result.Records[1].Algorithm)
	}
}

func TestLookupCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{}
	signatures := []models.SignatureRecord{
		sigWithDigests("a.exe", map[models.Algorithm]string{models.MD5: strings.Repeat("A", 32)}),
	}

	merger := NewMerger(fetcher, testLogger(), 1)
	result, err := merger.Lookup(ctx, signatures, LookupOptions{})
	if err != nil {
		t.Fatalf("cancellation must not surface as an error, got %v", err)
	}
	if !result.Partial {
		t.Fatal("expected a partial result after cancellation")
	}
}

func TestLookupNoFetcher(t *testing.T) {
	merger := NewMerger(nil, testLogger(), 1)
	if _, err := merger.Lookup(context.Background(), nil, LookupOptions{}); err == nil {
		t.Fatal("expected an error without a configured client")
	}
}

// End-to-end through the real HTTP client: the partition must come out
// identical regardless of response arrival order.
func TestLookupThroughHTTPServer(t *testing.T) {
	responses := map[string][]map[string]any{
		strings.Repeat("A", 32): {{"product": "alpha"}},
		strings.Repeat("B", 32): {},
		strings.Repeat("C", 32): {{"product": "gamma"}, {"product": "gamma-sp1"}},
		strings.Repeat("D", 32): {},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		digest := strings.TrimPrefix(r.URL.Path, "/")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(responses[digest])
	}))
	defer server.Close()

	var signatures []models.SignatureRecord
	for _, letter := range []string{"A", "B", "C", "D"} {
		signatures = append(signatures, sigWithDigests(
			strings.ToLower(letter)+".exe",
			map[models.Algorithm]string{models.MD5: strings.Repeat(letter, 32)},
		))
	}

	client := NewClient(server.URL+"/", testLogger())
	merger := NewMerger(client, testLogger(), 4)

	var first []models.MergedRecord
	for run := 0; run < 3; run++ {
		result, err := merger.Lookup(context.Background(), signatures, LookupOptions{})
		if err != nil {
			t.Fatalf("Lookup run %d: %v", run, err)
		}
		if run == 0 {
			first = result.Records
			continue
		}
		if len(result.Records) != len(first) {
			t.Fatalf("run %d produced %d rows, first run produced %d", run, len(result.Records), len(first))
		}
		for i := range first {
			if result.Records[i].Signature.Filename != first[i].Signature.Filename ||
				result.Records[i].Matched != first[i].Matched {
				t.Errorf("run %d row %d differs from the first run", run, i)
			}
		}
	}

	wantFilenames := []string{"a.exe", "c.exe", "c.exe", "b.exe", "d.exe"}
	if len(first) != len(wantFilenames) {
		t.Fatalf("expected %d rows, got %d", len(wantFilenames), len(first))
	}
	for i, want := range wantFilenames {
		if first[i].Signature.Filename != want {
			t.Errorf("row %d = %s, want %s", i, first[i].Signature.Filename, want)
		}
	}
}
