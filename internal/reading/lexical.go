package reading

import (
	"unicode/utf8"

	"gonum.org/v1/gonum/mat"
)

// Lexical returns word length in characters and the word's frequency within
// the text for every word.
func Lexical(words []string) (lengths, frequencies []float64) {
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}
	lengths = make([]float64, len(words))
	frequencies = make([]float64, len(words))
	for i, w := range words {
		lengths[i] = float64(utf8.RuneCountInString(w))
		frequencies[i] = float64(counts[w])
	}
	return lengths, frequencies
}

// FeatureMatrix stacks feature columns into a samples×features matrix.
// All columns must have the same length.
func FeatureMatrix(columns ...[]float64) *mat.Dense {
	n := len(columns[0])
	m := mat.NewDense(n, len(columns), nil)
	for j, col := range columns {
		m.SetCol(j, col)
	}
	return m
}

// MeasureMatrix returns the table's measures as a samples×measures matrix.
func MeasureMatrix(t Table) *mat.Dense {
	m := mat.NewDense(t.Len(), len(t.Measures), nil)
	for i, r := range t.Records {
		m.SetRow(i, r.Measures)
	}
	return m
}
