package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// LoadRoutes reads species routes from a single-column CSV file, one per
// row, no header. Only the first column is used; blank rows and
// surrounding whitespace are ignored.
func LoadRoutes(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open datafile: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read datafile: %w", err)
	}

	var routes []string
	for _, record := range records {
		if len(record) == 0 {
			continue
		}
		if route := strings.TrimSpace(record[0]); route != "" {
			routes = append(routes, route)
		}
	}

	return routes, nil
}
