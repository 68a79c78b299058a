package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/quality"
)

const dateLayout = "2006-01-02"

// Manifest enumerates the batch inputs: the tabular files per station and
// day, the structured file, the audited numeric fields, and the physical
// range table.
type Manifest struct {
	Tabular    TabularSource    `yaml:"tabular"`
	Structured StructuredSource `yaml:"structured"`
	Fields     []string         `yaml:"fields"`
	Ranges     []quality.Range  `yaml:"ranges"`
}

// TabularSource describes the delimited provider exports.
type TabularSource struct {
	Delimiter string `yaml:"delimiter"`
	Encoding  string `yaml:"encoding"`
	// SkipLines are 0-based physical lines to discard, header included.
	SkipLines *[]int    `yaml:"skip_lines"`
	Source    string    `yaml:"source"`
	Stations  []Station `yaml:"stations"`
}

// Station maps calendar dates (YYYY-MM-DD) to the file holding that day.
type Station struct {
	ID    string            `yaml:"id"`
	Name  string            `yaml:"name"`
	Files map[string]string `yaml:"files"`
}

// StructuredSource is the single nested export. An empty path disables it.
type StructuredSource struct {
	Path string `yaml:"path"`
}

// LoadManifest parses the YAML manifest at path, applies defaults, resolves
// relative file paths against the manifest's directory, and validates it.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseManifest is LoadManifest over raw bytes. baseDir anchors relative paths.
func ParseManifest(data []byte, baseDir string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	m.applyDefaults()
	m.resolve(baseDir)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Tabular.Delimiter == "" {
		m.Tabular.Delimiter = ";"
	}
	if m.Tabular.Encoding == "" {
		m.Tabular.Encoding = "latin-1"
	}
	if m.Tabular.SkipLines == nil {
		m.Tabular.SkipLines = &[]int{2}
	}
	if m.Tabular.Source == "" {
		m.Tabular.Source = domain.SourceWeatherUnderground
	}
	if len(m.Fields) == 0 {
		m.Fields = slices.Clone(domain.NumericFields)
	}
	if len(m.Ranges) == 0 {
		m.Ranges = quality.DefaultRanges()
	}
}

func (m *Manifest) resolve(baseDir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	for i := range m.Tabular.Stations {
		for date, p := range m.Tabular.Stations[i].Files {
			m.Tabular.Stations[i].Files[date] = abs(p)
		}
	}
	m.Structured.Path = abs(m.Structured.Path)
}

// Validate rejects manifests the pipeline cannot enumerate.
func (m *Manifest) Validate() error {
	if utf8.RuneCountInString(m.Tabular.Delimiter) != 1 {
		return fmt.Errorf("tabular.delimiter must be a single character, got %q", m.Tabular.Delimiter)
	}
	seen := make(map[string]bool, len(m.Tabular.Stations))
	for _, st := range m.Tabular.Stations {
		if st.ID == "" {
			return errors.New("tabular station without id")
		}
		if seen[st.ID] {
			return fmt.Errorf("duplicate tabular station %q", st.ID)
		}
		seen[st.ID] = true
		for date, p := range st.Files {
			if _, err := time.Parse(dateLayout, date); err != nil {
				return fmt.Errorf("station %s: invalid date %q", st.ID, date)
			}
			if p == "" {
				return fmt.Errorf("station %s: empty path for %s", st.ID, date)
			}
		}
	}
	for _, f := range m.Fields {
		if !slices.Contains(domain.NumericFields, f) {
			return fmt.Errorf("unknown numeric field %q", f)
		}
	}
	for _, r := range m.Ranges {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DelimiterRune returns the tabular field delimiter.
func (t TabularSource) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(t.Delimiter)
	return r
}

// Skip returns the physical lines to discard.
func (t TabularSource) Skip() []int {
	if t.SkipLines == nil {
		return nil
	}
	return *t.SkipLines
}

// Dates returns the station's dates in ascending order.
func (s Station) Dates() []string {
	dates := make([]string, 0, len(s.Files))
	for d := range s.Files {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	return dates
}

// TabularFiles counts the declared tabular files across stations.
func (m *Manifest) TabularFiles() int {
	n := 0
	for _, st := range m.Tabular.Stations {
		n += len(st.Files)
	}
	return n
}
