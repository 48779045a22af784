package adapter

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/evd-tools/eve/internal/model"
)

// VarscanAdapter parses VarScan's native tab-separated pileup2snp output.
// VarScan reports 1-based positions but percent-scale variant frequencies
// ("12.5%"), which are normalized to fractional allele frequencies here.
type VarscanAdapter struct{}

func (a *VarscanAdapter) Detector() model.DetectorID {
	return model.DetectorVarscan
}

// Column layout of pileup2snp output.
const (
	vsChrom     = 0
	vsPos       = 1
	vsRef       = 2
	vsReads1    = 4
	vsReads2    = 5
	vsVarFreq   = 6
	vsQual2     = 10
	vsPvalue    = 11
	vsVarAllele = 18
	vsColumns   = 19
)

func (a *VarscanAdapter) Parse(path string) ([]model.CallRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &MalformedOutputError{Detector: model.DetectorVarscan, Path: path, Err: eris.Wrap(err, "output artifact missing")}
	}
	defer f.Close()

	var records []model.CallRecord
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r\n")
		if text == "" {
			continue
		}
		if line == 1 && strings.HasPrefix(text, "Chrom\t") {
			continue // column header
		}

		rec, err := a.parseLine(text, line)
		if err != nil {
			return nil, &MalformedOutputError{Detector: model.DetectorVarscan, Path: path, Err: err}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, &MalformedOutputError{Detector: model.DetectorVarscan, Path: path, Err: err}
	}
	return records, nil
}

func (a *VarscanAdapter) parseLine(text string, line int) (model.CallRecord, error) {
	fields := strings.Split(text, "\t")
	if len(fields) < vsColumns {
		return model.CallRecord{}, eris.Errorf("line %d: expected %d columns, got %d", line, vsColumns, len(fields))
	}

	pos, err := strconv.Atoi(fields[vsPos])
	if err != nil || pos < 1 {
		return model.CallRecord{}, eris.Errorf("line %d: invalid position %q", line, fields[vsPos])
	}

	qual, err := strconv.ParseFloat(fields[vsQual2], 64)
	if err != nil {
		return model.CallRecord{}, eris.Errorf("line %d: invalid variant quality %q", line, fields[vsQual2])
	}

	reads1, err := strconv.Atoi(fields[vsReads1])
	if err != nil {
		return model.CallRecord{}, eris.Errorf("line %d: invalid reference read count %q", line, fields[vsReads1])
	}
	reads2, err := strconv.Atoi(fields[vsReads2])
	if err != nil {
		return model.CallRecord{}, eris.Errorf("line %d: invalid variant read count %q", line, fields[vsReads2])
	}

	freq, err := parsePercent(fields[vsVarFreq])
	if err != nil {
		return model.CallRecord{}, eris.Wrapf(err, "line %d", line)
	}

	alt := fields[vsVarAllele]
	if alt == "" {
		return model.CallRecord{}, eris.Errorf("line %d: empty variant allele", line)
	}

	evidence := map[string]string{
		model.EvidenceDepth:      strconv.Itoa(reads1 + reads2),
		model.EvidenceAlleleFreq: strconv.FormatFloat(freq, 'f', 4, 64),
		"PVALUE":                 fields[vsPvalue],
	}

	return model.CallRecord{
		Chrom:    fields[vsChrom],
		Pos:      pos,
		Ref:      fields[vsRef],
		Alts:     []string{alt},
		Detector: model.DetectorVarscan,
		Qual:     qual,
		Evidence: evidence,
	}, nil
}

func parsePercent(s string) (float64, error) {
	trimmed := strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid variant frequency %q", s)
	}
	return v / 100, nil
}
