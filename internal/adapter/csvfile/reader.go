// Package csvfile reads delimited provider exports into header-keyed rows.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
)

// Reader parses one delimited file per call. The first record is the header;
// header names are whitespace-trimmed. Lines listed in skip (0-based physical
// line numbers, header included) are discarded.
type Reader struct {
	delimiter rune
	encoding  encoding.Encoding
	skip      map[int]bool
	required  []string
}

// NewReader creates a Reader.
func NewReader(delimiter rune, enc encoding.Encoding, skipLines ...int) *Reader {
	skip := make(map[int]bool, len(skipLines))
	for _, l := range skipLines {
		skip[l] = true
	}
	if enc == nil {
		enc = unicode.UTF8
	}
	return &Reader{delimiter: delimiter, encoding: enc, skip: skip}
}

// Require makes ReadRows fail when the trimmed header lacks any of columns.
// A header read with the wrong delimiter collapses into one column and fails
// here instead of yielding rows that map to nothing.
func (r *Reader) Require(columns ...string) *Reader {
	r.required = append(r.required, columns...)
	return r
}

// EncodingByName resolves the text encodings used by provider exports.
func EncodingByName(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-15", "latin-9":
		return charmap.ISO8859_15, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// ReadRows returns the file's data rows keyed by trimmed header name. A file
// that does not exist yields an error wrapping domain.ErrSourceMissing.
func (r *Reader) ReadRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSourceMissing, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return r.parse(transform.NewReader(f, r.encoding.NewDecoder()))
}

func (r *Reader) parse(src io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(src)
	cr.Comma = r.delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		header []string
		rows   []map[string]string
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		line, _ := cr.FieldPos(0)
		if r.skip[line-1] {
			continue
		}

		if header == nil {
			header = make([]string, len(record))
			for i, h := range record {
				header[i] = strings.TrimSpace(h)
			}
			if err := r.checkHeader(header); err != nil {
				return nil, err
			}
			continue
		}

		if blank(record) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		rows = append(rows, row)
	}

	if header == nil {
		return nil, errors.New("read csv: missing header row")
	}
	return rows, nil
}

func (r *Reader) checkHeader(header []string) error {
	for _, want := range r.required {
		if !slices.Contains(header, want) {
			return fmt.Errorf("read csv: header lacks column %q (got %d columns)", want, len(header))
		}
	}
	return nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
