package scanner

import (
	"testing"

	"github.com/y0ug/hashscan/internal/models"
)

func signatureWith(filename string, digests map[models.Algorithm]string) models.SignatureRecord {
	return models.SignatureRecord{Filename: filename, Digests: digests}
}

func TestVerifySignaturesTriState(t *testing.T) {
	signatures := []models.SignatureRecord{
		signatureWith("calc.exe", map[models.Algorithm]string{
			models.MD5:    "AABBCCDDEEFF00112233445566778899",
			models.SHA1:   "93A915768F25E2C142254C5BDFF21545BBE4C354",
			models.SHA256: "4EFADBB55D6477768BC91675554035A94B855A552CDFF16DF0DBF7C1B6D5D0BF",
		}),
	}
	references := []models.ReferenceRecord{
		{
			Filename: "calc.exe",
			Digests: map[models.Algorithm]string{
				// Lowercase on purpose: comparison must ignore hex case.
				models.MD5:  "aabbccddeeff00112233445566778899",
				models.SHA1: "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF",
				// Present but empty: supplied with no value.
				models.SHA256: "",
			},
		},
	}

	results := VerifySignatures(signatures, references, "")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	record := results[0]

	if got := record.Matches[models.MD5]; got != models.MatchMatched {
		t.Errorf("MD5 state = %v, want matched", got)
	}
	if got := record.Matches[models.SHA1]; got != models.MatchMismatched {
		t.Errorf("SHA1 state = %v, want mismatched", got)
	}
	if got := record.Matches[models.SHA256]; got != models.MatchMissing {
		t.Errorf("SHA256 state = %v, want missing (reference column empty)", got)
	}
	if got := record.Matches[models.SHA512]; got != models.MatchMissing {
		t.Errorf("SHA512 state = %v, want missing (neither side supplied)", got)
	}
	if record.Placeholder != models.DefaultMissingPlaceholder {
		t.Errorf("Placeholder = %q, want %q", record.Placeholder, models.DefaultMissingPlaceholder)
	}
}

func TestVerifySignaturesNoReferenceEntry(t *testing.T) {
	signatures := []models.SignatureRecord{
		signatureWith("orphan.dll", map[models.Algorithm]string{
			models.MD5: "AABBCCDDEEFF00112233445566778899",
		}),
	}
	references := []models.ReferenceRecord{
		{Filename: "other.dll", Digests: map[models.Algorithm]string{models.MD5: "AABBCCDDEEFF00112233445566778899"}},
	}

	results := VerifySignatures(signatures, references, "-")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	for _, algo := range models.Algorithms {
		if got := results[0].Matches[algo]; got != models.MatchMissing {
			t.Errorf("%s state = %v, want missing", algo, got)
		}
	}
	if results[0].Placeholder != "-" {
		t.Errorf("Placeholder = %q, want a dash", results[0].Placeholder)
	}
}

func TestVerifySignaturesFilenameCaseSensitive(t *testing.T) {
	signatures := []models.SignatureRecord{
		signatureWith("tool.exe", map[models.Algorithm]string{models.MD5: "AABBCCDDEEFF00112233445566778899"}),
	}
	references := []models.ReferenceRecord{
		{Filename: "TOOL.EXE", Digests: map[models.Algorithm]string{models.MD5: "AABBCCDDEEFF00112233445566778899"}},
	}

	results := VerifySignatures(signatures, references, "")
	if got := results[0].Matches[models.MD5]; got != models.MatchMissing {
		t.Errorf("MD5 state = %v, want missing: reference filenames match exactly", got)
	}
}

func TestBuildReferenceIndexFirstDuplicateWins(t *testing.T) {
	references := []models.ReferenceRecord{
		{Filename: "dup.exe", Digests: map[models.Algorithm]string{models.MD5: "11111111111111111111111111111111"}},
		{Filename: "dup.exe", Digests: map[models.Algorithm]string{models.MD5: "22222222222222222222222222222222"}},
	}

	index := BuildReferenceIndex(references)
	if len(index) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(index))
	}
	if got := index["dup.exe"].Digests[models.MD5]; got != "11111111111111111111111111111111" {
		t.Errorf("kept digest = %s, want the first occurrence", got)
	}
}

func TestSummarizeMatches(t *testing.T) {
	records := []models.MatchedRecord{
		{Matches: map[models.Algorithm]models.MatchState{
			models.MD5:  models.MatchMatched,
			models.SHA1: models.MatchMismatched,
		}},
		{Matches: map[models.Algorithm]models.MatchState{
			models.MD5: models.MatchMatched,
		}},
		{Matches: map[models.Algorithm]models.MatchState{}},
	}

	counts := SummarizeMatches(records)
	if counts.Mismatched != 1 {
		t.Errorf("Mismatched = %d, want 1 (any mismatch wins)", counts.Mismatched)
	}
	if counts.Matched != 1 {
		t.Errorf("Matched = %d, want 1", counts.Matched)
	}
	if counts.Missing != 1 {
		t.Errorf("Missing = %d, want 1", counts.Missing)
	}
}

func TestVerifySignaturesPreservesInputOrder(t *testing.T) {
	signatures := []models.SignatureRecord{
		signatureWith("b.exe", nil),
		signatureWith("a.exe", nil),
		signatureWith("c.exe", nil),
	}

	results := VerifySignatures(signatures, nil, "")
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"b.exe", "a.exe", "c.exe"} {
		if results[i].Signature.Filename != want {
			t.Errorf("results[%d] = %q, want %q", i, results[i].Signature.Filename, want)
		}
	}
}
