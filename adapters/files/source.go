package files

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"brainlm/domain/rerp"
	"brainlm/internal/deconv"
	"brainlm/internal/errors"
	"brainlm/ports"

	"gonum.org/v1/gonum/mat"
)

// Source reads cleaned recordings, event tables and word lists from CSV files.
type Source struct {
	SamplingRate float64
	// ChannelFile, when set, lists one channel name per line and the signal
	// file carries no header row.
	ChannelFile string
}

var (
	_ ports.SignalSource = (*Source)(nil)
	_ ports.TextSource   = (*Source)(nil)
)

// NewSource creates a file source for recordings sampled at sfreq.
func NewSource(sfreq float64, channelFile string) *Source {
	return &Source{SamplingRate: sfreq, ChannelFile: channelFile}
}

// LoadRecording reads the signal, events and optional artifact sidecar of a run.
func (s *Source) LoadRecording(ctx context.Context, run ports.RunFiles, eventType string) (*ports.Recording, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	var channels []string
	if s.ChannelFile != "" {
		names, err := ReadChannelNames(s.ChannelFile)
		if err != nil {
			return nil, err
		}
		channels = names
	}

	signal, channels, err := ReadSignal(run.Signal, channels)
	if err != nil {
		return nil, err
	}

	events, err := ReadEvents(run.Events, eventType, s.SamplingRate)
	if err != nil {
		return nil, err
	}

	var artifacts []deconv.Interval
	if sidecar := ArtifactPath(run.Signal); fileExists(sidecar) {
		artifacts, err = ReadArtifacts(sidecar)
		if err != nil {
			return nil, err
		}
	}

	_, n := signal.Dims()
	log.Printf("[FileSource] Loaded %s: %d channels, %d samples, %d events, %d artifact segments in %v",
		filepath.Base(run.Signal), len(channels), n, events.Len(), len(artifacts), time.Since(start))

	return &ports.Recording{
		Signal:       signal,
		Channels:     channels,
		Events:       events,
		SamplingRate: s.SamplingRate,
		Artifacts:    artifacts,
	}, nil
}

// ReadWords implements ports.TextSource.
func (s *Source) ReadWords(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadWordList(path)
}

// ReadSignal reads a samples×channels CSV and returns it as channels×samples.
// When channels is nil the first row is taken as the channel header.
func ReadSignal(path string, channels []string) (*mat.Dense, []string, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, nil, err
	}
	if channels == nil {
		if len(rows) == 0 {
			return nil, nil, errors.InvalidInput(fmt.Sprintf("signal file %s is empty", path))
		}
		channels = trimAll(rows[0])
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, nil, errors.InvalidInput(fmt.Sprintf("signal file %s has no samples", path))
	}

	signal := mat.NewDense(len(channels), len(rows), nil)
	for s, row := range rows {
		if len(row) != len(channels) {
			return nil, nil, errors.ShapeMismatchError(
				"%s line %d has %d values for %d channels", path, s+1, len(row), len(channels))
		}
		for ch, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, nil, errors.Wrapf(errors.InvalidInput(err.Error()), "%s sample %d channel %s", path, s, channels[ch])
			}
			signal.Set(ch, s, v)
		}
	}
	return signal, channels, nil
}

// ReadChannelNames reads one channel name per line.
func ReadChannelNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel names: %w", err)
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("channel file %s lists no channels", path))
	}
	return names, nil
}

// ReadEvents reads an event table. Two layouts are accepted:
//
//	sample,reserved,code   integer sample triplets; a numeric eventType keeps
//	                       only rows of that code, recoded to 1
//	type,onset             onsets in seconds; rows of eventType become code 1
func ReadEvents(path, eventType string, sfreq float64) (rerp.EventTable, error) {
	rows, err := readCSV(path)
	if err != nil {
		return rerp.EventTable{}, err
	}
	if len(rows) == 0 {
		return rerp.EventTable{}, errors.InvalidInput(fmt.Sprintf("event file %s is empty", path))
	}
	header := indexHeader(rows[0])

	var events []rerp.Event
	switch {
	case hasColumns(header, "sample", "code"):
		selected, atoiErr := strconv.Atoi(strings.TrimSpace(eventType))
		for i, row := range rows[1:] {
			sample, err := atoiCell(row, header["sample"])
			if err != nil {
				return rerp.EventTable{}, errors.Wrapf(err, "%s row %d", path, i+1)
			}
			code, err := atoiCell(row, header["code"])
			if err != nil {
				return rerp.EventTable{}, errors.Wrapf(err, "%s row %d", path, i+1)
			}
			reserved := 0
			if idx, ok := header["reserved"]; ok {
				if reserved, err = atoiCell(row, idx); err != nil {
					return rerp.EventTable{}, errors.Wrapf(err, "%s row %d", path, i+1)
				}
			}
			if atoiErr == nil {
				if code != selected {
					continue
				}
				code = 1
			}
			events = append(events, rerp.Event{Sample: sample, Reserved: reserved, Code: code})
		}
	case hasColumns(header, "type", "onset"):
		for i, row := range rows[1:] {
			if len(row) <= max(header["type"], header["onset"]) {
				return rerp.EventTable{}, errors.ShapeMismatchError("%s row %d has %d cells", path, i+1, len(row))
			}
			if strings.TrimSpace(row[header["type"]]) != eventType {
				continue
			}
			onset, err := strconv.ParseFloat(strings.TrimSpace(row[header["onset"]]), 64)
			if err != nil {
				return rerp.EventTable{}, errors.Wrapf(errors.InvalidInput(err.Error()), "%s row %d", path, i+1)
			}
			events = append(events, rerp.Event{Sample: int(math.Round(onset * sfreq)), Code: 1})
		}
	default:
		return rerp.EventTable{}, errors.InvalidInput(
			fmt.Sprintf("event file %s needs sample,code or type,onset columns", path))
	}

	table, err := rerp.NewEventTable(events)
	if err != nil {
		return rerp.EventTable{}, errors.Wrapf(err, "event file %s", path)
	}
	return table, nil
}

// ArtifactPath returns the artifact sidecar location of a signal file.
func ArtifactPath(signalPath string) string {
	return strings.TrimSuffix(signalPath, filepath.Ext(signalPath)) + ".artifacts.csv"
}

// ReadArtifacts reads start,end sample intervals.
func ReadArtifacts(path string) ([]deconv.Interval, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	var out []deconv.Interval
	for i, row := range rows {
		if i == 0 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "start") {
			continue
		}
		start, err := atoiCell(row, 0)
		if err != nil {
			return nil, errors.Wrapf(err, "%s row %d", path, i)
		}
		end, err := atoiCell(row, 1)
		if err != nil {
			return nil, errors.Wrapf(err, "%s row %d", path, i)
		}
		out = append(out, deconv.Interval{Start: start, End: end})
	}
	return out, nil
}

// ReadWordList reads a header-less CSV of words and flattens it row by row.
func ReadWordList(path string) ([]string, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	var words []string
	for _, row := range rows {
		for _, cell := range row {
			if w := strings.TrimSpace(cell); w != "" {
				words = append(words, w)
			}
		}
	}
	return words, nil
}

// ListDir returns the sorted regular entries of dir, ignoring hidden files
// and notebook checkpoints.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || name == "__pycache__" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func indexHeader(row []string) map[string]int {
	idx := make(map[string]int, len(row))
	for i, name := range row {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

func hasColumns(header map[string]int, names ...string) bool {
	for _, n := range names {
		if _, ok := header[n]; !ok {
			return false
		}
	}
	return true
}

func atoiCell(row []string, idx int) (int, error) {
	if idx >= len(row) {
		return 0, errors.ShapeMismatchError("row has %d columns, need column %d", len(row), idx+1)
	}
	v, err := strconv.Atoi(strings.TrimSpace(row[idx]))
	if err != nil {
		return 0, errors.InvalidInput(err.Error())
	}
	return v, nil
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var _ ports.DirectoryLister = (*Source)(nil)

// List implements ports.DirectoryLister.
func (s *Source) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ListDir(dir)
}
