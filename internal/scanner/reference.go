package scanner

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/y0ug/hashscan/internal/models"
)

const filenameColumn = "filename"

// LoadReferences reads a reference set from disk, picking the parser
// by file extension. ".json" selects the JSON reader, everything else
// is treated as CSV.
func LoadReferences(filePath string) ([]models.ReferenceRecord, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference file: %w", err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		return ReadReferencesJSON(file)
	}
	return ReadReferencesCSV(file)
}

// ReadReferencesCSV parses a header-driven reference CSV. The header
// must contain a "filename" column; every column whose name parses as
// a supported algorithm becomes a digest column, anything else is
// ignored with a warning. A digest column absent from the header means
// the digest was not supplied at all, while an empty cell under a
// present column means supplied-but-empty; the two cases are kept
// distinct in the record's digest map.
func ReadReferencesCSV(r io.Reader) ([]models.ReferenceRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("reference CSV is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	filenameIndex := -1
	digestColumns := make(map[int]models.Algorithm)
	for i, name := range header {
		name = strings.TrimSpace(name)
		if strings.EqualFold(name, filenameColumn) {
			filenameIndex = i
			continue
		}
		algo, err := models.ParseAlgorithm(name)
		if err != nil {
			logrus.WithField("column", name).Warn("Ignoring unrecognized reference column")
			continue
		}
		digestColumns[i] = algo
	}
	if filenameIndex < 0 {
		return nil, fmt.Errorf("reference CSV header has no %q column", filenameColumn)
	}

	var records []models.ReferenceRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading reference CSV: %w", err)
		}

		record := models.ReferenceRecord{
			Filename: strings.TrimSpace(row[filenameIndex]),
			Digests:  make(map[models.Algorithm]string, len(digestColumns)),
		}
		for i, algo := range digestColumns {
			value := strings.TrimSpace(row[i])
			if value != "" {
				if err := models.ValidateDigest(algo, value); err != nil {
					logrus.WithError(err).WithFields(logrus.Fields{
						"filename":  record.Filename,
						"algorithm": algo,
					}).Warn("Reference digest failed validation, keeping it verbatim")
				}
			}
			record.Digests[algo] = value
		}
		records = append(records, record)
	}
	return records, nil
}

// ReadReferencesJSON parses a reference set serialized as an array of
// flat objects. Keys are matched the same way as CSV headers; an
// absent key means the digest was not supplied.
func ReadReferencesJSON(r io.Reader) ([]models.ReferenceRecord, error) {
	var rows []map[string]string
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode reference JSON: %w", err)
	}

	var records []models.ReferenceRecord
	for _, row := range rows {
		record := models.ReferenceRecord{Digests: make(map[models.Algorithm]string)}
		for key, value := range row {
			if strings.EqualFold(key, filenameColumn) {
				record.Filename = strings.TrimSpace(value)
			}
		}
		for key, value := range row {
			if strings.EqualFold(key, filenameColumn) {
				continue
			}
			algo, err := models.ParseAlgorithm(key)
			if err != nil {
				logrus.WithField("key", key).Warn("Ignoring unrecognized reference key")
				continue
			}
			value = strings.TrimSpace(value)
			if value != "" {
				if err := models.ValidateDigest(algo, value); err != nil {
					logrus.WithError(err).WithFields(logrus.Fields{
						"filename":  record.Filename,
						"algorithm": algo,
					}).Warn("Reference digest failed validation, keeping it verbatim")
				}
			}
			record.Digests[algo] = value
		}
		if record.Filename == "" {
			logrus.Warn("Skipping reference entry without a filename")
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// ReferenceTemplate returns a single empty-schema record carrying
// every supported algorithm key, for discovering the reference file
// layout.
func ReferenceTemplate() []models.ReferenceRecord {
	digests := make(map[models.Algorithm]string, len(models.Algorithms))
	for _, algo := range models.Algorithms {
		digests[algo] = ""
	}
	return []models.ReferenceRecord{{Digests: digests}}
}
