// Package prospects reads prospect lists from CSV and XLSX files for batch
// discovery.
package prospects

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/model"
)

// ReadFile loads prospects from path, dispatching on the file extension.
// Supported: .csv, .xlsx.
func ReadFile(path string) ([]model.Prospect, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, eris.Errorf("prospects: unsupported file type %q", filepath.Ext(path))
	}
}

func readCSV(path string) ([]model.Prospect, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prospects: open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "prospects: parse %s", path)
	}
	return fromRows(rows)
}

func readXLSX(path string) ([]model.Prospect, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prospects: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("prospects: %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return fromRows(rows)
}

// fromRows maps a header row plus data rows into prospects. Header names are
// matched case-insensitively; rows missing a name or domain are skipped.
func fromRows(rows [][]string) ([]model.Prospect, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		cols[normalizeHeader(name)] = i
	}
	for _, required := range []string{"first_name", "last_name", "domain"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("prospects: missing required column %q", required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []model.Prospect
	for n, row := range rows[1:] {
		p := model.Prospect{
			FirstName: cell(row, "first_name"),
			LastName:  cell(row, "last_name"),
			Domain:    cell(row, "domain"),
			Company:   cell(row, "company"),
			Title:     cell(row, "title"),
		}
		if p.FirstName == "" || p.LastName == "" || p.Domain == "" {
			zap.L().Warn("skipping incomplete prospect row", zap.Int("row", n+2))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
