// Package vcf reads detector output in VCF text form and writes the final
// consensus call set.
package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Record is one data line of a VCF file. Positions are 1-based as in the
// file; no coordinate shifting happens here.
type Record struct {
	Chrom  string
	Pos    int
	ID     string
	Ref    string
	Alts   []string
	Qual   float64
	Filter string
	Info   map[string]string
}

// ParseError reports an unparseable VCF line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf: line %d: %s", e.Line, e.Msg)
}

// ReadFile parses path and returns its data records. A file with only header
// lines (or nothing at all) yields zero records and no error; a data line
// that cannot be parsed yields a *ParseError.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vcf: open %s", path)
	}
	defer f.Close()
	return Read(f)
}

// Read parses VCF records from r.
func Read(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var records []Record
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r\n")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		rec, err := parseLine(text, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "vcf: read")
	}
	return records, nil
}

func parseLine(text string, line int) (Record, error) {
	fields := strings.Split(text, "\t")
	if len(fields) < 8 {
		return Record{}, &ParseError{Line: line, Msg: fmt.Sprintf("expected at least 8 tab-separated fields, got %d", len(fields))}
	}

	pos, err := strconv.Atoi(fields[1])
	if err != nil || pos < 1 {
		return Record{}, &ParseError{Line: line, Msg: fmt.Sprintf("invalid position %q", fields[1])}
	}
	if fields[3] == "" {
		return Record{}, &ParseError{Line: line, Msg: "empty reference allele"}
	}

	rec := Record{
		Chrom:  fields[0],
		Pos:    pos,
		ID:     fields[2],
		Ref:    fields[3],
		Filter: fields[6],
		Info:   parseInfo(fields[7]),
	}

	if fields[4] != "" && fields[4] != "." {
		rec.Alts = strings.Split(fields[4], ",")
	}

	if fields[5] != "" && fields[5] != "." {
		qual, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return Record{}, &ParseError{Line: line, Msg: fmt.Sprintf("invalid quality %q", fields[5])}
		}
		rec.Qual = qual
	}

	return rec, nil
}

// parseInfo splits a semicolon-delimited INFO column. Flag entries map to an
// empty string value.
func parseInfo(s string) map[string]string {
	info := make(map[string]string)
	if s == "" || s == "." {
		return info
	}
	for _, entry := range strings.Split(s, ";") {
		if entry == "" {
			continue
		}
		if k, v, ok := strings.Cut(entry, "="); ok {
			info[k] = v
		} else {
			info[entry] = ""
		}
	}
	return info
}
