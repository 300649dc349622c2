package normalize

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
)

const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"
)

// Table is a raw, untyped upload: a header and the data rows as read.
type Table struct {
	Header    []string
	Rows      [][]string
	Delimiter string
	Encoding  string
}

// Read decodes an uploaded file into a Table. CSV-like files are sniffed for
// their delimiter and fall back to ISO-8859-1 when they aren't valid UTF-8.
func Read(r io.Reader, filename string) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv", ".tsv", ".txt", "":
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return readDelimited(raw)
	case ".xlsx":
		return readXLSX(r)
	default:
		return nil, domainerrors.Validation("file", "unsupported file type %q; upload a .csv file", ext)
	}
}

func readDelimited(raw []byte) (*Table, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	encoding := EncodingUTF8
	if !utf8.Valid(raw) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, domainerrors.Validation("file", "unreadable text encoding")
		}
		raw = decoded
		encoding = EncodingLatin1
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, domainerrors.Validation("file", "empty upload")
	}

	delim := sniffDelimiter(raw)
	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, domainerrors.Validation("file", "cannot read header: %v", err)
	}
	t := &Table{Header: header, Delimiter: string(delim), Encoding: encoding}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// a malformed line is kept as an empty row so it is counted as rejected
			t.Rows = append(t.Rows, nil)
			continue
		}
		if isBlank(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// sniffDelimiter picks the candidate occurring most often on the header line.
func sniffDelimiter(raw []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := ""
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			line = l
			break
		}
	}
	best, bestN := ',', 0
	for _, c := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(line, string(c)); n > bestN {
			best, bestN = c, n
		}
	}
	return best
}

func readXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domainerrors.Validation("file", "cannot open workbook: %v", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, domainerrors.Validation("file", "cannot read sheet %q: %v", sheet, err)
	}
	for len(rows) > 0 && isBlank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, domainerrors.Validation("file", "empty upload")
	}
	t := &Table{Header: rows[0], Delimiter: "", Encoding: "xlsx"}
	for _, rec := range rows[1:] {
		if isBlank(rec) {
			continue
		}
		// excelize trims trailing empty cells
		for len(rec) < len(t.Header) {
			rec = append(rec, "")
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
