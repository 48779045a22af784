package adapter

import "github.com/evd-tools/eve/internal/model"

// MpileupAdapter parses the VCF emitted by samtools/bcftools mpileup+call.
type MpileupAdapter struct{}

func (a *MpileupAdapter) Detector() model.DetectorID {
	return model.DetectorMpileup
}

func (a *MpileupAdapter) Parse(path string) ([]model.CallRecord, error) {
	return parseVCFOutput(model.DetectorMpileup, path, []string{
		model.EvidenceDepth,
		model.EvidenceAlleleFreq,
		"MQ",
	})
}
