package files

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"brainlm/internal/errors"
	"brainlm/ports"
)

// SurprisalTable serves precomputed surprisal values from a CSV file with a
// "word" column and one column per model. Tables keyed by context length
// live side by side as <base>_<contextLength>.csv.
//
// An optional "text" column lets one table hold several texts, e.g. the word
// lists of every run. Rows of a text must be contiguous and in reading order.
type SurprisalTable struct {
	Dir  string
	Base string
}

var _ ports.CovariateSource = (*SurprisalTable)(nil)

// NewSurprisalTable creates a table source rooted at dir.
func NewSurprisalTable(dir, base string) *SurprisalTable {
	return &SurprisalTable{Dir: dir, Base: base}
}

// Path returns the table file for a context length.
func (s *SurprisalTable) Path(contextLength int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s_%d.csv", s.Base, contextLength))
}

// tableText is one text of a surprisal table
type tableText struct {
	id    string
	words []string
	rows  [][]string
	first int // 1-based data row of the first word
}

// Surprisal returns the model column of the first text whose words equal
// the requested words in order.
func (s *SurprisalTable) Surprisal(ctx context.Context, model string, words []string, contextLength int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(contextLength)
	rows, err := readCSV(path)
	if err != nil {
		return nil, errors.ExternalServiceError("surprisal table", err)
	}
	if len(rows) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("surprisal table %s is empty", path))
	}

	header := indexHeader(rows[0])
	wordIdx, ok := header["word"]
	if !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("surprisal table %s has no word column", path))
	}
	modelIdx, ok := header[strings.ToLower(model)]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("model %q in surprisal table %s", model, path))
	}
	textIdx, hasText := header["text"]
	if !hasText {
		textIdx = -1
	}

	texts, err := splitTexts(path, rows[1:], wordIdx, modelIdx, textIdx)
	if err != nil {
		return nil, err
	}
	for _, text := range texts {
		if !slices.Equal(text.words, words) {
			continue
		}
		out := make([]float64, len(words))
		for i, row := range text.rows {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[modelIdx]), 64)
			if err != nil {
				return nil, errors.Wrapf(errors.InvalidInput(err.Error()), "%s row %d", path, text.first+i)
			}
			out[i] = v
		}
		return out, nil
	}

	if len(texts) == 1 && len(texts[0].words) != len(words) {
		return nil, errors.ShapeMismatchError(
			"surprisal table %s has %d rows for %d words", path, len(texts[0].words), len(words))
	}
	return nil, errors.ShapeMismatchError(
		"surprisal table %s has no text matching the %d requested words (%d texts)", path, len(words), len(texts))
}

// splitTexts groups data rows by the text column, or returns one text when
// textIdx is negative.
func splitTexts(path string, rows [][]string, wordIdx, modelIdx, textIdx int) ([]tableText, error) {
	var texts []tableText
	seen := make(map[string]struct{})
	for i, row := range rows {
		if len(row) <= max(wordIdx, modelIdx, textIdx) {
			return nil, errors.ShapeMismatchError("surprisal table %s row %d has %d cells", path, i+1, len(row))
		}
		id := ""
		if textIdx >= 0 {
			id = strings.TrimSpace(row[textIdx])
		}
		if len(texts) == 0 || texts[len(texts)-1].id != id {
			if _, dup := seen[id]; dup {
				return nil, errors.InvalidInput(fmt.Sprintf("surprisal table %s text %q is not contiguous", path, id))
			}
			seen[id] = struct{}{}
			texts = append(texts, tableText{id: id, first: i + 1})
		}
		t := &texts[len(texts)-1]
		t.words = append(t.words, strings.TrimSpace(row[wordIdx]))
		t.rows = append(t.rows, row)
	}
	if len(texts) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("surprisal table %s has no rows", path))
	}
	return texts, nil
}
