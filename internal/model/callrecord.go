package model

import "time"

// CallRecord is one variant observation from one detector, normalized to the
// canonical representation: 1-based position with an explicit reference
// allele. Records are immutable once an adapter has produced them.
type CallRecord struct {
	Chrom    string            `json:"chrom"`
	Pos      int               `json:"pos"` // 1-based
	Ref      string            `json:"ref"`
	Alts     []string          `json:"alts"` // ordered as reported by the detector
	Detector DetectorID        `json:"detector"`
	Qual     float64           `json:"qual"` // detector-native confidence scale
	Evidence map[string]string `json:"evidence,omitempty"`
}

// Well-known evidence keys adapters populate when the detector reports them.
// Values remain detector-specific strings; aggregation parses them lazily.
const (
	EvidenceDepth      = "DP"
	EvidenceAlleleFreq = "AF"
)

// DetectorResult is the outcome of one detector's execution: either a set of
// call records or a failure marker. A failure contributes zero records but
// never aborts the run on its own.
type DetectorResult struct {
	Detector DetectorID
	Records  []CallRecord
	Err      error
	Duration time.Duration
}

// Failed reports whether this detector produced no usable output.
func (r DetectorResult) Failed() bool {
	return r.Err != nil
}
