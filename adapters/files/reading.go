package files

import (
	"context"
	"log"
	"path/filepath"

	"brainlm/internal/errors"
	"brainlm/internal/reading"
	"brainlm/ports"
)

// ReadingReader loads eye-tracking reading data from a CSV file with a
// header row.
type ReadingReader struct{}

var _ ports.ReadingSource = ReadingReader{}

// ReadReadingData implements ports.ReadingSource.
func (ReadingReader) ReadReadingData(ctx context.Context, path string, cols ports.ReadingColumns) (reading.Table, error) {
	if err := ctx.Err(); err != nil {
		return reading.Table{}, err
	}
	rows, err := readCSV(path)
	if err != nil {
		return reading.Table{}, err
	}
	table, err := reading.FromRows(rows, cols.Subject, cols.Word, cols.Measures)
	if err != nil {
		return reading.Table{}, errors.Wrapf(err, "reading file %s", path)
	}
	log.Printf("[ReadingReader] Loaded %d records with %d measures from %s",
		table.Len(), len(table.Measures), filepath.Base(path))
	return table, nil
}
