package excel

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"brainlm/adapters/files"
	"brainlm/internal/errors"
	"brainlm/internal/reading"
	"brainlm/ports"

	"github.com/xuri/excelize/v2"
)

// ReadingReader loads reading data from xlsx workbooks and falls back to the
// CSV reader for .csv files.
type ReadingReader struct {
	// Sheet names the worksheet to read; empty reads the first one.
	Sheet string
}

var _ ports.ReadingSource = ReadingReader{}

// NewReadingReader creates a reader for the given worksheet
func NewReadingReader(sheet string) ReadingReader {
	return ReadingReader{Sheet: sheet}
}

// ReadReadingData implements ports.ReadingSource.
func (r ReadingReader) ReadReadingData(ctx context.Context, path string, cols ports.ReadingColumns) (reading.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return files.ReadingReader{}.ReadReadingData(ctx, path, cols)
	}
	if err := ctx.Err(); err != nil {
		return reading.Table{}, err
	}
	log.Printf("[ReadingReader] Starting to read xlsx file: %s", path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return reading.Table{}, errors.NotFound(fmt.Sprintf("reading file %s", path))
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return reading.Table{}, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("failed to open %s: %w", path, err))
	}
	defer f.Close()

	sheet := r.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return reading.Table{}, errors.WithCode(errors.CodeNotFound, fmt.Errorf("failed to read sheet %s: %w", sheet, err))
	}

	table, err := reading.FromRows(rows, cols.Subject, cols.Word, cols.Measures)
	if err != nil {
		return reading.Table{}, errors.Wrapf(err, "reading file %s", path)
	}
	log.Printf("[ReadingReader] Loaded %d records with %d measures from sheet %s", table.Len(), len(table.Measures), sheet)
	return table, nil
}
