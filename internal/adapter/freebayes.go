package adapter

import "github.com/evd-tools/eve/internal/model"

// FreebayesAdapter parses freebayes VCF output.
type FreebayesAdapter struct{}

func (a *FreebayesAdapter) Detector() model.DetectorID {
	return model.DetectorFreebayes
}

func (a *FreebayesAdapter) Parse(path string) ([]model.CallRecord, error) {
	return parseVCFOutput(model.DetectorFreebayes, path, []string{
		model.EvidenceDepth,
		model.EvidenceAlleleFreq,
		"AO",
		"RO",
	})
}
