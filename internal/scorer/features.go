package scorer

import (
	"strconv"

	"github.com/evd-tools/eve/internal/model"
)

// FeatureLen is the width of the classifier's input vector.
const FeatureLen = 10

// Features derives the classifier input for one candidate site. The layout
// is fixed: supporting-detector count, agreement ratio over the detectors
// that produced usable output this run, one quality slot per detector in
// canonical order (zero when that detector is silent at this site), then
// max quality, mean quality, mean read depth, and mean allele frequency.
// Identical sites always produce identical vectors.
func Features(site *model.CandidateSite, usable []model.DetectorID) []float32 {
	f := make([]float32, FeatureLen)

	supporters := site.Supporters()
	f[0] = float32(len(supporters))
	if len(usable) > 0 {
		f[1] = float32(len(supporters)) / float32(len(usable))
	}

	var (
		maxQual          float64
		sumQual          float64
		sumDepth, nDepth float64
		sumAF, nAF       float64
		nRecords         int
	)

	for _, rec := range site.Records() {
		rank := model.DetectorRank(rec.Detector)
		if rank >= 0 && rank < len(model.AllDetectors) {
			slot := 2 + rank
			if float32(rec.Qual) > f[slot] {
				f[slot] = float32(rec.Qual)
			}
		}

		if rec.Qual > maxQual {
			maxQual = rec.Qual
		}
		sumQual += rec.Qual
		nRecords++

		if v, ok := evidenceFloat(rec, model.EvidenceDepth); ok {
			sumDepth += v
			nDepth++
		}
		if v, ok := evidenceFloat(rec, model.EvidenceAlleleFreq); ok {
			sumAF += v
			nAF++
		}
	}

	f[6] = float32(maxQual)
	if nRecords > 0 {
		f[7] = float32(sumQual / float64(nRecords))
	}
	if nDepth > 0 {
		f[8] = float32(sumDepth / nDepth)
	}
	if nAF > 0 {
		f[9] = float32(sumAF / nAF)
	}

	return f
}

func evidenceFloat(rec model.CallRecord, key string) (float64, bool) {
	raw, ok := rec.Evidence[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
