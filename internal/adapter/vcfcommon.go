package adapter

import (
	"os"

	"github.com/rotisserie/eris"

	"github.com/evd-tools/eve/internal/model"
	"github.com/evd-tools/eve/internal/vcf"
)

// parseVCFOutput implements the shared path for detectors that emit VCF.
// infoKeys lists the INFO fields copied into record evidence when present.
func parseVCFOutput(det model.DetectorID, path string, infoKeys []string) ([]model.CallRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &MalformedOutputError{Detector: det, Path: path, Err: eris.Wrap(err, "output artifact missing")}
	}

	raws, err := vcf.ReadFile(path)
	if err != nil {
		return nil, &MalformedOutputError{Detector: det, Path: path, Err: err}
	}

	var records []model.CallRecord
	for _, raw := range raws {
		alts := variantAlts(raw.Alts)
		if len(alts) == 0 {
			// Reference or symbolic-only line, not a variant call.
			continue
		}

		evidence := make(map[string]string)
		for _, key := range infoKeys {
			if v, ok := raw.Info[key]; ok && v != "" {
				evidence[key] = v
			}
		}

		records = append(records, model.CallRecord{
			Chrom:    raw.Chrom,
			Pos:      raw.Pos,
			Ref:      raw.Ref,
			Alts:     alts,
			Detector: det,
			Qual:     raw.Qual,
			Evidence: evidence,
		})
	}
	return records, nil
}

// variantAlts drops symbolic alleles (gVCF <*>, <NON_REF>, breakends) that
// do not describe a concrete alternate sequence.
func variantAlts(alts []string) []string {
	var out []string
	for _, alt := range alts {
		if alt == "" || alt == "." || alt[0] == '<' {
			continue
		}
		out = append(out, alt)
	}
	return out
}
