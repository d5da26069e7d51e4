// Package export flattens run results into tabular form for CSV and
// JSON sinks. Column sets are computed as the union across all rows,
// never from the first row alone, so late-appearing repository
// attributes can not be silently dropped by the serializer.
package export

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/y0ug/hashscan/internal/models"
)

// Table is a flat, ordered view of one result set. Every column is
// rendered for every row; cells without a value are empty strings.
type Table struct {
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
}

// repositoryColumnPrefix namespaces remote attribute keys so they can
// never collide with signature columns.
const repositoryColumnPrefix = "Repository"

var versionColumns = []string{
	"InternalName", "OriginalFilename", "FileVersion",
	"Description", "Product", "ProductVersion",
}

var certificateColumns = []string{
	"SignerSubject", "SignerIssuer", "SerialNumber", "Thumbprint",
	"NotBefore", "NotAfter", "TimestamperSubject", "SignatureStatus",
}

// SignatureTable flattens plain scan output.
func SignatureTable(records []models.SignatureRecord) *Table {
	shape := signatureShape(records)
	table := &Table{Columns: shape.columns()}
	for i := range records {
		table.Rows = append(table.Rows, signatureCells(&records[i]))
	}
	return table
}

// MatchedTable flattens verification output: signature columns plus
// one <Algo>HashMatch column per supported algorithm.
func MatchedTable(records []models.MatchedRecord) *Table {
	signatures := make([]models.SignatureRecord, 0, len(records))
	for _, record := range records {
		signatures = append(signatures, record.Signature)
	}
	shape := signatureShape(signatures)

	columns := shape.columns()
	for _, algo := range models.Algorithms {
		columns = append(columns, string(algo)+"HashMatch")
	}

	table := &Table{Columns: columns}
	for _, record := range records {
		row := signatureCells(&record.Signature)
		placeholder := record.Placeholder
		if placeholder == "" {
			placeholder = models.DefaultMissingPlaceholder
		}
		for _, algo := range models.Algorithms {
			row[string(algo)+"HashMatch"] = record.Matches[algo].Render(placeholder)
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// MergedTable flattens repository lookup output: signature columns
// plus one Repository<Key> column per attribute key seen on any row,
// sorted for a deterministic layout.
func MergedTable(records []models.MergedRecord) *Table {
	signatures := make([]models.SignatureRecord, 0, len(records))
	for _, record := range records {
		signatures = append(signatures, record.Signature)
	}
	shape := signatureShape(signatures)

	keySet := make(map[string]bool)
	for _, record := range records {
		for key := range record.Repository {
			keySet[key] = true
		}
	}
	repositoryKeys := make([]string, 0, len(keySet))
	for key := range keySet {
		repositoryKeys = append(repositoryKeys, key)
	}
	sort.Strings(repositoryKeys)

	columns := shape.columns()
	for _, key := range repositoryKeys {
		columns = append(columns, repositoryColumnPrefix+key)
	}

	table := &Table{Columns: columns}
	for _, record := range records {
		row := signatureCells(&record.Signature)
		for key, value := range record.Repository {
			row[repositoryColumnPrefix+key] = renderValue(value)
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// ReferenceTable flattens reference records, used by the template
// command to show the expected reference file layout.
func ReferenceTable(records []models.ReferenceRecord) *Table {
	present := make(map[models.Algorithm]bool)
	for _, record := range records {
		for algo := range record.Digests {
			present[algo] = true
		}
	}

	columns := []string{"filename"}
	for _, algo := range models.Algorithms {
		if present[algo] {
			columns = append(columns, string(algo))
		}
	}

	table := &Table{Columns: columns}
	for _, record := range records {
		row := map[string]string{"filename": record.Filename}
		for algo, digest := range record.Digests {
			row[string(algo)] = digest
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// tableShape tracks which optional signature column groups any row
// actually uses.
type tableShape struct {
	fullPath    bool
	digests     map[models.Algorithm]bool
	version     bool
	certificate bool
}

func signatureShape(records []models.SignatureRecord) tableShape {
	shape := tableShape{digests: make(map[models.Algorithm]bool)}
	for i := range records {
		record := &records[i]
		if record.FullPath != "" {
			shape.fullPath = true
		}
		for algo := range record.Digests {
			shape.digests[algo] = true
		}
		if record.Version != nil {
			shape.version = true
		}
		if record.Certificate != nil {
			shape.certificate = true
		}
	}
	return shape
}

func (s tableShape) columns() []string {
	columns := []string{"Filename", "RelativePath"}
	if s.fullPath {
		columns = append(columns, "FullPath")
	}
	columns = append(columns, "SizeBytes", "CreatedUTC", "ModifiedUTC")
	for _, algo := range models.Algorithms {
		if s.digests[algo] {
			columns = append(columns, string(algo))
		}
	}
	if s.version {
		columns = append(columns, versionColumns...)
	}
	if s.certificate {
		columns = append(columns, certificateColumns...)
	}
	return append(columns, "EntryTimestamp")
}

func signatureCells(record *models.SignatureRecord) map[string]string {
	row := map[string]string{
		"Filename":       record.Filename,
		"RelativePath":   record.RelativePath,
		"SizeBytes":      strconv.FormatUint(record.SizeBytes, 10),
		"CreatedUTC":     renderTime(record.CreatedUTC),
		"ModifiedUTC":    renderTime(record.ModifiedUTC),
		"EntryTimestamp": renderTime(record.EntryTimestamp),
	}
	if record.FullPath != "" {
		row["FullPath"] = record.FullPath
	}
	for algo, digest := range record.Digests {
		row[string(algo)] = digest
	}
	if v := record.Version; v != nil {
		row["InternalName"] = v.InternalName
		row["OriginalFilename"] = v.OriginalFilename
		row["FileVersion"] = v.FileVersion
		row["Description"] = v.Description
		row["Product"] = v.Product
		row["ProductVersion"] = v.ProductVersion
	}
	if c := record.Certificate; c != nil {
		row["SignerSubject"] = c.SignerSubject
		row["SignerIssuer"] = c.SignerIssuer
		row["SerialNumber"] = c.SerialNumber
		row["Thumbprint"] = c.Thumbprint
		row["NotBefore"] = renderTime(c.NotBefore)
		row["NotAfter"] = renderTime(c.NotAfter)
		row["TimestamperSubject"] = c.TimestamperSubject
		row["SignatureStatus"] = c.Status
	}
	return row
}

func renderTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
