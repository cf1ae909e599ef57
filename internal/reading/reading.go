// Package reading prepares eye-tracking reading measures for the lexical vs
// surprisal model comparison.
package reading

import (
	"strconv"
	"strings"

	"brainlm/internal/errors"

	"github.com/montanaflynn/stats"
)

// Record is one word as read by one subject.
type Record struct {
	Subject  string
	Word     string
	Measures []float64
	// Surprisal of the word in the full text, set by WithSurprisal
	Surprisal float64
}

// Table holds reading records with named measure columns.
type Table struct {
	Measures []string
	Records  []Record
}

// Len returns the number of records.
func (t Table) Len() int {
	return len(t.Records)
}

// Words returns the word column.
func (t Table) Words() []string {
	words := make([]string, len(t.Records))
	for i, r := range t.Records {
		words[i] = r.Word
	}
	return words
}

// Surprisals returns the surprisal column.
func (t Table) Surprisals() []float64 {
	out := make([]float64, len(t.Records))
	for i, r := range t.Records {
		out[i] = r.Surprisal
	}
	return out
}

// WithSurprisal attaches one surprisal value per record, in record order.
// Filters applied afterwards keep each word's value.
func WithSurprisal(t Table, values []float64) (Table, error) {
	if len(values) != t.Len() {
		return Table{}, errors.ShapeMismatchError("covariate source returned %d values for %d words", len(values), t.Len())
	}
	records := make([]Record, len(t.Records))
	for i, r := range t.Records {
		r.Surprisal = values[i]
		records[i] = r
	}
	return t.with(records), nil
}

// MeasureIndex returns the column index of a named measure.
func (t Table) MeasureIndex(name string) (int, error) {
	for i, m := range t.Measures {
		if m == name {
			return i, nil
		}
	}
	return -1, errors.InvalidInput("unknown reading measure " + strconv.Quote(name))
}

// Column returns one measure across records.
func (t Table) Column(idx int) []float64 {
	col := make([]float64, len(t.Records))
	for i, r := range t.Records {
		col[i] = r.Measures[idx]
	}
	return col
}

func (t Table) with(records []Record) Table {
	return Table{Measures: append([]string(nil), t.Measures...), Records: records}
}

// ParseMeasure parses a reading measure cell. Blank cells and the "." null
// marker read as zero.
func ParseMeasure(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell == "." {
		return 0, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, errors.Wrapf(errors.InvalidInput(err.Error()), "parsing reading measure %q", cell)
	}
	return v, nil
}

// SplitBySubject returns one table per subject id, in the order of ids.
func SplitBySubject(t Table, ids []string) ([]Table, error) {
	bySubject := make(map[string][]Record, len(ids))
	for _, r := range t.Records {
		bySubject[r.Subject] = append(bySubject[r.Subject], r)
	}

	out := make([]Table, 0, len(ids))
	for _, id := range ids {
		recs, ok := bySubject[id]
		if !ok {
			return nil, errors.InvalidInput("no reading data for subject " + strconv.Quote(id))
		}
		out = append(out, t.with(recs))
	}
	return out, nil
}

// Subjects returns the distinct subject ids in first-seen order.
func Subjects(t Table) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, r := range t.Records {
		if _, ok := seen[r.Subject]; ok {
			continue
		}
		seen[r.Subject] = struct{}{}
		ids = append(ids, r.Subject)
	}
	return ids
}

// Aggregate averages measures position by position across subjects. Words are
// taken from the first subject; every subject must have read the same number
// of words.
func Aggregate(subjects []Table) (Table, error) {
	if len(subjects) == 0 {
		return Table{}, errors.InvalidInput("no subjects to aggregate")
	}
	first := subjects[0]
	n := first.Len()
	for i, s := range subjects[1:] {
		if s.Len() != n {
			return Table{}, errors.ShapeMismatchError(
				"subject %d has %d words, subject 0 has %d", i+1, s.Len(), n)
		}
	}

	records := make([]Record, n)
	scale := 1 / float64(len(subjects))
	for i := 0; i < n; i++ {
		sum := make([]float64, len(first.Measures))
		for _, s := range subjects {
			for j, v := range s.Records[i].Measures {
				sum[j] += v
			}
		}
		for j := range sum {
			sum[j] *= scale
		}
		records[i] = Record{Subject: "aggregate", Word: first.Records[i].Word, Measures: sum}
	}
	return first.with(records), nil
}

// RemoveOutliers drops records whose metric lies outside mean ± sd·SD, using
// the sample standard deviation.
func RemoveOutliers(t Table, metric string, sd float64) (Table, error) {
	idx, err := t.MeasureIndex(metric)
	if err != nil {
		return Table{}, err
	}
	col := t.Column(idx)
	mean, err := stats.Mean(col)
	if err != nil {
		return Table{}, errors.Wrapf(err, "mean of %s", metric)
	}
	std, err := stats.StandardDeviationSample(col)
	if err != nil {
		return Table{}, errors.Wrapf(err, "standard deviation of %s", metric)
	}

	lower, upper := mean-sd*std, mean+sd*std
	kept := make([]Record, 0, len(t.Records))
	for _, r := range t.Records {
		v := r.Measures[idx]
		if v >= lower && v <= upper {
			kept = append(kept, r)
		}
	}
	return t.with(kept), nil
}

// ApplyThreshold keeps records whose metric is strictly above threshold,
// discarding fixations too short for lexical processing.
func ApplyThreshold(t Table, metric string, threshold float64) (Table, error) {
	idx, err := t.MeasureIndex(metric)
	if err != nil {
		return Table{}, err
	}
	kept := make([]Record, 0, len(t.Records))
	for _, r := range t.Records {
		if r.Measures[idx] > threshold {
			kept = append(kept, r)
		}
	}
	return t.with(kept), nil
}

// Head returns the first n records, or all of them when n <= 0.
func Head(t Table, n int) Table {
	if n <= 0 || n >= t.Len() {
		return t
	}
	return t.with(append([]Record(nil), t.Records[:n]...))
}

// FromRows builds a table from a header row followed by data rows. Measure
// columns default to every column other than subject and word.
func FromRows(rows [][]string, subject, word string, measures []string) (Table, error) {
	if len(rows) < 2 {
		return Table{}, errors.InvalidInput("reading data has no records")
	}
	header := make([]string, len(rows[0]))
	index := make(map[string]int, len(header))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
		index[header[i]] = i
	}

	lookup := func(name string) (int, error) {
		idx, ok := index[name]
		if !ok {
			return 0, errors.InvalidInput("reading data has no column " + strconv.Quote(name))
		}
		return idx, nil
	}
	subjectIdx, err := lookup(subject)
	if err != nil {
		return Table{}, err
	}
	wordIdx, err := lookup(word)
	if err != nil {
		return Table{}, err
	}

	if len(measures) == 0 {
		for i, h := range header {
			if i != subjectIdx && i != wordIdx {
				measures = append(measures, h)
			}
		}
	}
	measureIdx := make([]int, len(measures))
	for j, m := range measures {
		if measureIdx[j], err = lookup(m); err != nil {
			return Table{}, err
		}
	}

	table := Table{Measures: append([]string(nil), measures...)}
	for line, row := range rows[1:] {
		cell := func(idx int) string {
			if idx < len(row) {
				return row[idx]
			}
			return ""
		}
		rec := Record{
			Subject:  strings.TrimSpace(cell(subjectIdx)),
			Word:     strings.TrimSpace(cell(wordIdx)),
			Measures: make([]float64, len(measureIdx)),
		}
		if rec.Subject == "" && rec.Word == "" {
			continue
		}
		for j, idx := range measureIdx {
			v, err := ParseMeasure(cell(idx))
			if err != nil {
				return Table{}, errors.Wrapf(err, "data row %d", line+1)
			}
			rec.Measures[j] = v
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}
