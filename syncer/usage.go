package syncer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadUsage reads the usage export: a CSV file with a header row and the
// columns metric, workflow_name, usage_count. A missing file yields an empty
// map and no error. Rows that are short or carry a non-integer count are
// skipped.
func LoadUsage(path string) (map[string]int, error) {
	usage := make(map[string]int)
	if path == "" {
		return usage, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return usage, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if header {
			header = false
			continue
		}
		if len(row) < 3 {
			continue
		}
		name := strings.TrimSpace(row[1])
		count, err := strconv.Atoi(strings.TrimSpace(row[2]))
		if name == "" || err != nil {
			continue
		}
		usage[name] = count
	}
	return usage, nil
}
