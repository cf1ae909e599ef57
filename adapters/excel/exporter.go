package excel

import (
	"fmt"
	"log"
	"strings"

	"brainlm/domain/rerp"
	"brainlm/internal/errors"
	"brainlm/models"
	"brainlm/ports"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// Exporter writes fitted responses and score tables to xlsx workbooks
type Exporter struct{}

var _ ports.ResultExporter = Exporter{}

// NewExporter creates a workbook exporter
func NewExporter() Exporter {
	return Exporter{}
}

// WriteResponses writes one sheet per condition. Column A holds the time axis
// in seconds, the following columns one channel each.
func (Exporter) WriteResponses(path string, channels []string, responses []rerp.FittedResponse) error {
	if len(responses) == 0 {
		return errors.InvalidInput("no responses to export")
	}
	f := excelize.NewFile()
	defer f.Close()

	for i, resp := range responses {
		if resp.Channels() != len(channels) {
			return errors.ShapeMismatchError("response %s has %d channels, %d names given",
				resp.Condition, resp.Channels(), len(channels))
		}
		sheet := sheetName(resp.Condition, i)
		if err := addSheet(f, sheet, i); err != nil {
			return err
		}

		header := make([]interface{}, 0, len(channels)+1)
		header = append(header, "time")
		for _, ch := range channels {
			header = append(header, ch)
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header of %s: %w", sheet, err)
		}

		for k, t := range resp.TimeAxis {
			row := make([]interface{}, 0, len(channels)+1)
			row = append(row, t)
			for ch := range channels {
				row = append(row, resp.Coefficients.At(ch, k))
			}
			cell, err := excelize.CoordinatesToCellName(1, k+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("failed to write %s row %d: %w", sheet, k, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	log.Printf("[Exporter] Wrote %d responses to %s", len(responses), path)
	return nil
}

// WriteScores writes each table to its own sheet: a label column followed by
// one column per measure.
func (Exporter) WriteScores(path string, tables ...models.ScoreTable) error {
	if len(tables) == 0 {
		return errors.InvalidInput("no score tables to export")
	}
	f := excelize.NewFile()
	defer f.Close()

	for i, table := range tables {
		title := table.Title
		if title == "" {
			title = "scores"
		}
		sheet := sheetName(title, i)
		if err := addSheet(f, sheet, i); err != nil {
			return err
		}

		header := []interface{}{""}
		for _, m := range table.Measures {
			header = append(header, m)
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header of %s: %w", sheet, err)
		}
		for r, row := range table.Rows {
			if len(row.Values) != len(table.Measures) {
				return errors.ShapeMismatchError("score row %s has %d values for %d measures",
					row.Label, len(row.Values), len(table.Measures))
			}
			cells := []interface{}{row.Label}
			for _, v := range row.Values {
				cells = append(cells, v)
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
				return fmt.Errorf("failed to write %s row %d: %w", sheet, r, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	log.Printf("[Exporter] Wrote %d score tables to %s", len(tables), path)
	return nil
}

// addSheet renames the default sheet for the first table and appends the rest.
func addSheet(f *excelize.File, name string, index int) error {
	if index == 0 {
		return f.SetSheetName(f.GetSheetName(0), name)
	}
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", name, err)
	}
	return nil
}

// sheetName makes a valid, unique worksheet name.
func sheetName(name string, index int) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if clean == "" {
		clean = "sheet"
	}
	suffix := fmt.Sprintf("_%d", index+1)
	if len(clean)+len(suffix) > maxSheetName {
		clean = clean[:maxSheetName-len(suffix)]
	}
	return clean + suffix
}
