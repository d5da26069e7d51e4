package models

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"regexp"
	"strings"
	"time"
)

// Algorithm identifies one of the supported digest algorithms.
type Algorithm string

const (
	MD5    Algorithm = "MD5"
	SHA1   Algorithm = "SHA1"
	SHA256 Algorithm = "SHA256"
	SHA512 Algorithm = "SHA512"
)

// Algorithms lists the supported algorithms in canonical output order.
var Algorithms = []Algorithm{MD5, SHA1, SHA256, SHA512}

// DefaultMissingPlaceholder is rendered for match fields that have no
// reference digest to compare against.
const DefaultMissingPlaceholder = "N/A"

var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

// digestLengths maps each algorithm to the length of its hex digest.
var digestLengths = map[Algorithm]int{
	MD5:    32,
	SHA1:   40,
	SHA256: 64,
	SHA512: 128,
}

var hexPattern = regexp.MustCompile("^[a-fA-F0-9]+$")

// ParseAlgorithm converts a user-supplied name into an Algorithm.
// Matching is case-insensitive and tolerates dashes ("sha-256").
func ParseAlgorithm(name string) (Algorithm, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", ""))
	switch Algorithm(normalized) {
	case MD5, SHA1, SHA256, SHA512:
		return Algorithm(normalized), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
}

// ParseAlgorithms parses a comma-separated algorithm list.
func ParseAlgorithms(input string) ([]Algorithm, error) {
	var algos []Algorithm
	for _, part := range strings.Split(input, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		algo, err := ParseAlgorithm(part)
		if err != nil {
			return nil, err
		}
		algos = append(algos, algo)
	}
	return algos, nil
}

// Hasher returns a fresh hash.Hash for the algorithm.
func (a Algorithm) Hasher() (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(a))
}

// ValidateDigest checks that a hex digest has the length and charset
// expected for the algorithm.
func ValidateDigest(algo Algorithm, digest string) error {
	want, ok := digestLengths[algo]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(algo))
	}
	if len(digest) != want {
		return fmt.Errorf("invalid %s digest length %d, want %d", algo, len(digest), want)
	}
	if !hexPattern.MatchString(digest) {
		return fmt.Errorf("%s digest must contain only hexadecimal characters", algo)
	}
	return nil
}

// VersionInfo carries executable version resource metadata supplied by
// an external provider.
type VersionInfo struct {
	InternalName     string `json:"internal_name,omitempty"`
	OriginalFilename string `json:"original_filename,omitempty"`
	FileVersion      string `json:"file_version,omitempty"`
	Description      string `json:"description,omitempty"`
	Product          string `json:"product,omitempty"`
	ProductVersion   string `json:"product_version,omitempty"`
}

// CertificateInfo carries code-signing certificate metadata supplied by
// an external provider.
type CertificateInfo struct {
	SignerSubject      string    `json:"signer_subject,omitempty"`
	SignerIssuer       string    `json:"signer_issuer,omitempty"`
	SerialNumber       string    `json:"serial_number,omitempty"`
	Thumbprint         string    `json:"thumbprint,omitempty"`
	NotBefore          time.Time `json:"not_before,omitempty"`
	NotAfter           time.Time `json:"not_after,omitempty"`
	TimestamperSubject string    `json:"timestamper_subject,omitempty"`
	Status             string    `json:"signature_status,omitempty"`
}

// SignatureRecord is the fingerprint of one successfully hashed file.
// Records are immutable after creation and live for a single run.
type SignatureRecord struct {
	// Filename is the lowercased base name, the identity key used for
	// reference matching.
	Filename string `json:"filename"`
	// FullPath is only populated when root-path disclosure is enabled;
	// otherwise it is omitted entirely so exported data cannot leak the
	// search root.
	FullPath       string               `json:"full_path,omitempty"`
	RelativePath   string               `json:"relative_path"`
	SizeBytes      uint64               `json:"size_bytes"`
	CreatedUTC     time.Time            `json:"created_utc"`
	ModifiedUTC    time.Time            `json:"modified_utc"`
	Digests        map[Algorithm]string `json:"digests"`
	Version        *VersionInfo         `json:"version_info,omitempty"`
	Certificate    *CertificateInfo     `json:"certificate_info,omitempty"`
	EntryTimestamp time.Time            `json:"entry_timestamp"`
}

// Digest returns the record's digest for the algorithm, or "" when the
// algorithm was not computed.
func (r *SignatureRecord) Digest(algo Algorithm) string {
	if r.Digests == nil {
		return ""
	}
	return r.Digests[algo]
}

// ReferenceRecord is one externally supplied known-good signature.
// A digest key that is absent from Digests means "not supplied"; a key
// present with an empty value means "supplied but empty". Both produce
// a Missing match state.
type ReferenceRecord struct {
	Filename string               `json:"filename"`
	Digests  map[Algorithm]string `json:"digests"`
}

// Supplied reports the reference digest for the algorithm and whether
// the reference supplied that algorithm at all.
func (r *ReferenceRecord) Supplied(algo Algorithm) (string, bool) {
	if r.Digests == nil {
		return "", false
	}
	digest, ok := r.Digests[algo]
	return digest, ok
}

// MatchState classifies one algorithm's comparison against reference
// data. The zero value is MatchMissing so records with no reference
// entry need no special handling.
type MatchState int

const (
	MatchMissing MatchState = iota
	MatchMatched
	MatchMismatched
)

func (s MatchState) String() string {
	switch s {
	case MatchMatched:
		return "Matched"
	case MatchMismatched:
		return "Mismatched"
	default:
		return "Missing"
	}
}

// Render produces the exported value for a match field: "True" or
// "False" for a real comparison, the placeholder when no reference
// digest was available.
func (s MatchState) Render(placeholder string) string {
	switch s {
	case MatchMatched:
		return "True"
	case MatchMismatched:
		return "False"
	default:
		return placeholder
	}
}

// MarshalJSON renders the state name so API responses stay readable.
func (s MatchState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// MatchedRecord pairs a signature with its per-algorithm tri-state
// comparison results.
type MatchedRecord struct {
	Signature SignatureRecord          `json:"signature"`
	Matches   map[Algorithm]MatchState `json:"matches"`
	// Placeholder is the value rendered for Missing states when this
	// record is exported.
	Placeholder string `json:"placeholder,omitempty"`
}

// MergedRecord is one output row of a repository lookup: the source
// signature plus either one remote match's attributes (Matched) or
// nothing (no-match partition).
type MergedRecord struct {
	Signature SignatureRecord `json:"signature"`
	// Algorithm is the algorithm whose digest was sent to the
	// repository for this row.
	Algorithm Algorithm `json:"algorithm"`
	Matched   bool      `json:"matched"`
	// Repository holds the match's attributes keyed by their remote
	// names; exported columns are prefixed "Repository<Key>".
	Repository map[string]any `json:"repository,omitempty"`
}
