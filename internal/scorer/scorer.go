// Package scorer assigns each candidate site an ensemble confidence using a
// trained classifier and applies the accept/reject threshold.
package scorer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/evd-tools/eve/internal/model"
)

// Model produces a confidence in [0, 1] for one feature vector. The ONNX
// implementation lives in this package; tests substitute their own.
type Model interface {
	Predict(features []float32) (float32, error)
	Close() error
}

// ScoreError wraps a model failure for one site. Scoring failures abort the
// run: a half-scored output would be worse than no output.
type ScoreError struct {
	Site model.SiteKey
	Err  error
}

func (e *ScoreError) Error() string {
	return fmt.Sprintf("scorer: site %s:%d %s: %v", e.Site.Chrom, e.Site.Pos, e.Site.Ref, e.Err)
}

func (e *ScoreError) Unwrap() error {
	return e.Err
}

// Scorer evaluates candidate sites against a fixed threshold. The usable
// detector set is part of the scorer's identity for a run: the agreement
// ratio depends on how many detectors actually produced output.
type Scorer struct {
	model     Model
	threshold float64
	usable    []model.DetectorID
}

// New builds a Scorer. usable is the set of detectors whose output survived
// this run; it is copied and sorted into canonical order.
func New(m Model, threshold float64, usable []model.DetectorID) *Scorer {
	ids := make([]model.DetectorID, len(usable))
	copy(ids, usable)
	model.SortDetectors(ids)
	return &Scorer{model: m, threshold: threshold, usable: ids}
}

// Threshold reports the configured accept threshold.
func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// Score evaluates one site and reports its confidence and whether it meets
// the threshold. Confidence at exactly the threshold is accepted.
func (s *Scorer) Score(site *model.CandidateSite) (float64, bool, error) {
	conf, err := s.model.Predict(Features(site, s.usable))
	if err != nil {
		return 0, false, &ScoreError{Site: site.Key(), Err: err}
	}

	// Uncalibrated exports can stray outside [0, 1]; the reported confidence
	// never does.
	confidence := min(max(float64(conf), 0), 1)
	accepted := confidence >= s.threshold

	zap.L().Debug("scored site",
		zap.String("chrom", site.Key().Chrom),
		zap.Int("pos", site.Key().Pos),
		zap.Float64("confidence", confidence),
		zap.Bool("accepted", accepted),
	)

	return confidence, accepted, nil
}
