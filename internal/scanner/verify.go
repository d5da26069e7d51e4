package scanner

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/y0ug/hashscan/internal/models"
)

// BuildReferenceIndex folds reference records into a filename-keyed
// index. Filenames are taken verbatim: a reference only matches
// signatures whose lowercased filename equals it exactly. When the
// same filename appears more than once, the first occurrence in input
// order wins and the duplicates are dropped with a warning.
func BuildReferenceIndex(references []models.ReferenceRecord) map[string]models.ReferenceRecord {
	index := make(map[string]models.ReferenceRecord, len(references))
	for _, reference := range references {
		if _, seen := index[reference.Filename]; seen {
			logrus.WithField("filename", reference.Filename).Warn("Duplicate reference filename, keeping the first occurrence")
			continue
		}
		index[reference.Filename] = reference
	}
	return index
}

// VerifySignatures compares computed signatures against local
// reference records and reports a tri-state verdict per algorithm:
// matched, mismatched, or missing when either side has no digest to
// compare. Digest comparison ignores hex case. An empty placeholder
// selects the default rendering for missing verdicts.
func VerifySignatures(signatures []models.SignatureRecord, references []models.ReferenceRecord, placeholder string) []models.MatchedRecord {
	if placeholder == "" {
		placeholder = models.DefaultMissingPlaceholder
	}
	index := BuildReferenceIndex(references)

	matched := make([]models.MatchedRecord, 0, len(signatures))
	for _, signature := range signatures {
		reference, found := index[signature.Filename]

		states := make(map[models.Algorithm]models.MatchState, len(models.Algorithms))
		for _, algo := range models.Algorithms {
			states[algo] = compareDigest(signature, reference, found, algo)
		}
		matched = append(matched, models.MatchedRecord{
			Signature:   signature,
			Matches:     states,
			Placeholder: placeholder,
		})
	}
	return matched
}

// MatchCounts tallies verification outcomes per record.
type MatchCounts struct {
	Matched    int
	Mismatched int
	Missing    int
}

// SummarizeMatches classifies each record by its worst outcome: any
// mismatched algorithm marks the record mismatched, otherwise any
// matched algorithm marks it matched, otherwise it counts as missing.
func SummarizeMatches(records []models.MatchedRecord) MatchCounts {
	var counts MatchCounts
	for _, record := range records {
		var matched, mismatched bool
		for _, state := range record.Matches {
			switch state {
			case models.MatchMatched:
				matched = true
			case models.MatchMismatched:
				mismatched = true
			}
		}
		switch {
		case mismatched:
			counts.Mismatched++
		case matched:
			counts.Matched++
		default:
			counts.Missing++
		}
	}
	return counts
}

// compareDigest yields the verdict for one (signature, algorithm)
// slot. Either side missing its digest, including a reference column
// that is present but empty, leaves the verdict at missing.
func compareDigest(signature models.SignatureRecord, reference models.ReferenceRecord, found bool, algo models.Algorithm) models.MatchState {
	computed := signature.Digest(algo)
	if computed == "" {
		return models.MatchMissing
	}
	if !found {
		return models.MatchMissing
	}
	supplied, ok := reference.Supplied(algo)
	if !ok || supplied == "" {
		return models.MatchMissing
	}
	if strings.EqualFold(computed, supplied) {
		return models.MatchMatched
	}
	return models.MatchMismatched
}
