package detector

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/arbovm/levenshtein"
)

// LabelMap maps model class indices to human readable labels
type LabelMap struct {
	labels []string
	index  map[string]int
}

// NewLabelMap builds a label map from an ordered label list
func NewLabelMap(labels []string) *LabelMap {
	m := &LabelMap{
		labels: labels,
		index:  make(map[string]int, len(labels)),
	}
	for i, l := range labels {
		if _, exists := m.index[l]; !exists {
			m.index[l] = i
		}
	}
	return m
}

// ReadLabelMap reads one label per line. Blank lines keep their index so the
// class numbering of the model is preserved.
func ReadLabelMap(r io.Reader) (*LabelMap, error) {
	var labels []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return NewLabelMap(labels), nil
}

// LoadLabelMap reads a labels file from disk
func LoadLabelMap(path string) (*LabelMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file %s: %w", path, err)
	}
	defer f.Close()
	return ReadLabelMap(f)
}

// Len returns the number of known classes
func (m *LabelMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.labels)
}

// Label returns the label for class i. Unknown or unnamed classes are
// reported by their index.
func (m *LabelMap) Label(i int) string {
	if m == nil || i < 0 || i >= len(m.labels) || m.labels[i] == "" {
		return strconv.Itoa(i)
	}
	return m.labels[i]
}

// Contains reports whether label is a known class name
func (m *LabelMap) Contains(label string) bool {
	if m == nil {
		return false
	}
	_, ok := m.index[label]
	return ok
}

// SuggestLabel returns the known label closest to name by edit distance.
// ok is false when the map is empty.
func (m *LabelMap) SuggestLabel(name string) (suggestion string, distance int, ok bool) {
	if m.Len() == 0 {
		return "", 0, false
	}
	best := -1
	for _, l := range m.labels {
		if l == "" {
			continue
		}
		d := levenshtein.Distance(strings.ToLower(name), strings.ToLower(l))
		if best < 0 || d < best {
			best = d
			suggestion = l
		}
	}
	if best < 0 {
		return "", 0, false
	}
	return suggestion, best, true
}

// UnknownLabels returns the entries of names that are not known classes,
// each paired with the closest known label.
func (m *LabelMap) UnknownLabels(names []string) map[string]string {
	unknown := make(map[string]string)
	if m.Len() == 0 {
		return unknown
	}
	for _, n := range names {
		if m.Contains(n) {
			continue
		}
		suggestion, _, _ := m.SuggestLabel(n)
		unknown[n] = suggestion
	}
	return unknown
}
