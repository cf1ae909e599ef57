package reading

import (
	"testing"

	"brainlm/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Measures: []string{"GAZE", "FIRST_FIX"},
		Records: []Record{
			{Subject: "pp21", Word: "the", Measures: []float64{200, 150}},
			{Subject: "pp22", Word: "the", Measures: []float64{100, 50}},
			{Subject: "pp21", Word: "cat", Measures: []float64{300, 250}},
			{Subject: "pp22", Word: "cat", Measures: []float64{500, 90}},
		},
	}
}

func TestParseMeasure(t *testing.T) {
	v, err := ParseMeasure(".")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = ParseMeasure(" 212.5 ")
	require.NoError(t, err)
	assert.Equal(t, 212.5, v)

	_, err = ParseMeasure("abc")
	assert.True(t, errors.Is(err, errors.CodeInvalidInput))
}

func TestSplitAndAggregate(t *testing.T) {
	tbl := sampleTable()
	assert.Equal(t, []string{"pp21", "pp22"}, Subjects(tbl))

	parts, err := SplitBySubject(tbl, []string{"pp22", "pp21"})
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, 100.0, parts[0].Records[0].Measures[0])

	agg, err := Aggregate(parts)
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "cat"}, agg.Words())
	assert.Equal(t, []float64{150, 100}, agg.Records[0].Measures)
	assert.Equal(t, []float64{400, 170}, agg.Records[1].Measures)

	_, err = SplitBySubject(tbl, []string{"pp99"})
	assert.True(t, errors.Is(err, errors.CodeInvalidInput))
}

func TestAggregate_LengthMismatch(t *testing.T) {
	a := Table{Measures: []string{"m"}, Records: []Record{{Word: "a", Measures: []float64{1}}}}
	b := Table{Measures: []string{"m"}}
	_, err := Aggregate([]Table{a, b})
	assert.True(t, errors.Is(err, errors.CodeShapeMismatch))
}

func TestRemoveOutliers(t *testing.T) {
	tbl := Table{Measures: []string{"m"}}
	for i := 0; i < 20; i++ {
		tbl.Records = append(tbl.Records, Record{Word: "w", Measures: []float64{100 + float64(i%3)}})
	}
	tbl.Records = append(tbl.Records, Record{Word: "far", Measures: []float64{1000}})

	out, err := RemoveOutliers(tbl, "m", 2.5)
	require.NoError(t, err)
	assert.Equal(t, 20, out.Len())
	for _, r := range out.Records {
		assert.NotEqual(t, "far", r.Word)
	}

	_, err = RemoveOutliers(tbl, "missing", 2.5)
	assert.True(t, errors.Is(err, errors.CodeInvalidInput))
}

func TestApplyThresholdAndHead(t *testing.T) {
	out, err := ApplyThreshold(sampleTable(), "FIRST_FIX", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "cat"}, out.Words())
	assert.Equal(t, 150.0, out.Records[0].Measures[1])

	assert.Equal(t, 2, Head(sampleTable(), 2).Len())
	assert.Equal(t, 4, Head(sampleTable(), 0).Len())
}

func TestLexicalAndMatrices(t *testing.T) {
	lengths, freqs := Lexical([]string{"the", "cat", "saw", "the", "märchen"})
	assert.Equal(t, []float64{3, 3, 3, 3, 7}, lengths)
	assert.Equal(t, []float64{2, 1, 1, 2, 1}, freqs)

	x := FeatureMatrix(lengths, freqs)
	r, c := x.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 2.0, x.At(3, 1))

	y := MeasureMatrix(sampleTable())
	assert.Equal(t, 250.0, y.At(2, 1))
}

func TestFromRows(t *testing.T) {
	rows := [][]string{
		{"PP_NR", " WORD", "GAZE", "SKIP"},
		{"1", "The", "120", "."},
		{"", "", "", ""},
		{"2", "cat", "90"},
	}
	table, err := FromRows(rows, "PP_NR", "WORD", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"GAZE", "SKIP"}, table.Measures)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, []float64{120, 0}, table.Records[0].Measures)
	assert.Equal(t, []float64{90, 0}, table.Records[1].Measures)

	_, err = FromRows(rows, "SUBJECT", "WORD", nil)
	assert.True(t, errors.Is(err, errors.CodeInvalidInput))

	_, err = FromRows(rows[:1], "PP_NR", "WORD", nil)
	assert.Error(t, err)

	_, err = FromRows([][]string{{"PP_NR", "WORD", "GAZE"}, {"1", "a", "abc"}}, "PP_NR", "WORD", nil)
	assert.True(t, errors.Is(err, errors.CodeInvalidInput))
}

func TestWithSurprisal_SurvivesFiltering(t *testing.T) {
	tagged, err := WithSurprisal(sampleTable(), []float64{1, 2, 3, 4})
	require.NoError(t, err)

	kept, err := ApplyThreshold(tagged, "FIRST_FIX", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "cat"}, kept.Words())
	assert.Equal(t, []float64{1, 3}, kept.Surprisals())

	_, err = WithSurprisal(sampleTable(), []float64{1, 2})
	assert.True(t, errors.Is(err, errors.CodeShapeMismatch))
}
