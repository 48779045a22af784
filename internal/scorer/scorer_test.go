package scorer

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evd-tools/eve/internal/model"
)

type stubModel struct {
	confidence float32
	err        error
	features   [][]float32
}

func (s *stubModel) Predict(features []float32) (float32, error) {
	s.features = append(s.features, features)
	return s.confidence, s.err
}

func (s *stubModel) Close() error { return nil }

func site(records ...model.CallRecord) *model.CandidateSite {
	s := model.NewCandidateSite(model.SiteKey{Chrom: "chr1", Pos: 100, Ref: "A"})
	for _, rec := range records {
		s.AddRecord(rec)
	}
	return s
}

func rec(det model.DetectorID, qual float64, evidence map[string]string) model.CallRecord {
	return model.CallRecord{
		Chrom:    "chr1",
		Pos:      100,
		Ref:      "A",
		Alts:     []string{"T"},
		Detector: det,
		Qual:     qual,
		Evidence: evidence,
	}
}

func TestFeaturesLayout(t *testing.T) {
	s := site(
		rec(model.DetectorMpileup, 60, map[string]string{"DP": "30", "AF": "0.5"}),
		rec(model.DetectorVarscan, 40, map[string]string{"DP": "20"}),
	)
	usable := []model.DetectorID{
		model.DetectorMpileup, model.DetectorFreebayes,
		model.DetectorVarscan, model.DetectorHaplotypeCaller,
	}

	f := Features(s, usable)
	require.Len(t, f, FeatureLen)

	assert.Equal(t, float32(2), f[0], "supporting detectors")
	assert.Equal(t, float32(0.5), f[1], "agreement over four usable")
	assert.Equal(t, float32(60), f[2], "mpileup quality slot")
	assert.Equal(t, float32(0), f[3], "freebayes silent")
	assert.Equal(t, float32(40), f[4], "varscan quality slot")
	assert.Equal(t, float32(0), f[5], "haplotypecaller silent")
	assert.Equal(t, float32(60), f[6], "max quality")
	assert.Equal(t, float32(50), f[7], "mean quality")
	assert.Equal(t, float32(25), f[8], "mean depth")
	assert.Equal(t, float32(0.5), f[9], "mean allele frequency")
}

func TestFeaturesDeterministic(t *testing.T) {
	usable := []model.DetectorID{model.DetectorMpileup, model.DetectorFreebayes}

	a := site(
		rec(model.DetectorFreebayes, 30, nil),
		rec(model.DetectorMpileup, 50, map[string]string{"DP": "12"}),
	)
	b := site(
		rec(model.DetectorMpileup, 50, map[string]string{"DP": "12"}),
		rec(model.DetectorFreebayes, 30, nil),
	)

	assert.Equal(t, Features(a, usable), Features(b, usable))
}

func TestFeaturesIgnoresUnparsableEvidence(t *testing.T) {
	s := site(rec(model.DetectorMpileup, 10, map[string]string{"DP": "lots", "AF": "0.25"}))
	f := Features(s, model.AllDetectors)
	assert.Equal(t, float32(0), f[8])
	assert.Equal(t, float32(0.25), f[9])
}

func TestScoreThreshold(t *testing.T) {
	cases := []struct {
		name       string
		confidence float32
		accepted   bool
	}{
		{"above", 0.9, true},
		{"exactly at threshold", 0.5, true},
		{"below", 0.49, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &stubModel{confidence: tc.confidence}
			s := New(m, 0.5, model.AllDetectors)

			conf, accepted, err := s.Score(site(rec(model.DetectorMpileup, 60, nil)))
			require.NoError(t, err)
			assert.InDelta(t, float64(tc.confidence), conf, 1e-6)
			assert.Equal(t, tc.accepted, accepted)
		})
	}
}

func TestScoreClampsConfidence(t *testing.T) {
	cases := []struct {
		name       string
		confidence float32
		want       float64
		accepted   bool
	}{
		{"overshoot", 1.2, 1, true},
		{"undershoot", -0.3, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &stubModel{confidence: tc.confidence}
			s := New(m, 0.5, model.AllDetectors)

			conf, accepted, err := s.Score(site(rec(model.DetectorMpileup, 60, nil)))
			require.NoError(t, err)
			assert.Equal(t, tc.want, conf)
			assert.Equal(t, tc.accepted, accepted)
		})
	}
}

func TestScoreModelFailure(t *testing.T) {
	m := &stubModel{err: eris.New("session died")}
	s := New(m, 0.5, model.AllDetectors)

	_, _, err := s.Score(site(rec(model.DetectorMpileup, 60, nil)))

	var scoreErr *ScoreError
	require.ErrorAs(t, err, &scoreErr)
	assert.Equal(t, "chr1", scoreErr.Site.Chrom)
	assert.Equal(t, 100, scoreErr.Site.Pos)
}

func TestScorePassesFeatureVector(t *testing.T) {
	m := &stubModel{confidence: 0.7}
	s := New(m, 0.5, []model.DetectorID{model.DetectorMpileup})

	_, _, err := s.Score(site(rec(model.DetectorMpileup, 60, nil)))
	require.NoError(t, err)

	require.Len(t, m.features, 1)
	require.Len(t, m.features[0], FeatureLen)
	assert.Equal(t, float32(1), m.features[0][1], "single usable detector gives full agreement")
}
