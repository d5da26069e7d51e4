package export

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSON renders the table as an array of flat objects. Every
// object carries every column so consumers reading the first element
// see the complete schema.
func WriteJSON(w io.Writer, table *Table) error {
	rows := make([]map[string]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		flat := make(map[string]string, len(table.Columns))
		for _, column := range table.Columns {
			flat[column] = row[column]
		}
		rows = append(rows, flat)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rows); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
