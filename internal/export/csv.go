package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteCSV renders the table with a header row. Every data row gets a
// cell for every column.
func WriteCSV(w io.Writer, table *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	cells := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, column := range table.Columns {
			cells[i] = row[column]
		}
		if err := writer.Write(cells); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Save writes the table to a file, picking the format by extension:
// ".json" selects JSON, everything else CSV.
func Save(filePath string, table *Table) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		return WriteJSON(file, table)
	}
	return WriteCSV(file, table)
}
