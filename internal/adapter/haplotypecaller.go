package adapter

import "github.com/evd-tools/eve/internal/model"

// HaplotypeCallerAdapter parses GATK HaplotypeCaller VCF output.
type HaplotypeCallerAdapter struct{}

func (a *HaplotypeCallerAdapter) Detector() model.DetectorID {
	return model.DetectorHaplotypeCaller
}

func (a *HaplotypeCallerAdapter) Parse(path string) ([]model.CallRecord, error) {
	return parseVCFOutput(model.DetectorHaplotypeCaller, path, []string{
		model.EvidenceDepth,
		model.EvidenceAlleleFreq,
		"MQ",
		"QD",
	})
}
