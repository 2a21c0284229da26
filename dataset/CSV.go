package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
)

// LoadCSV loads a Dataset from a comma separated file whose first row
// is a header naming the columns
func LoadCSV(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loadCSV: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("loadCSV: could not read %v: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("loadCSV: %v is empty", path)
	}

	data, err := parseRows(rows[0], rows[1:])
	if err != nil {
		return nil, fmt.Errorf("loadCSV: %v", err)
	}
	return data, nil
}
