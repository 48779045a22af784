package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evd-tools/eve/internal/config"
	"github.com/evd-tools/eve/internal/model"
	"github.com/evd-tools/eve/internal/store"
)

type fakeRunner struct {
	results []model.DetectorResult
}

func (f *fakeRunner) Run(_ context.Context, _ model.RunInput, _ string) []model.DetectorResult {
	return f.results
}

type fakeModel struct {
	confidence float32
	err        error
}

func (f *fakeModel) Predict(_ []float32) (float32, error) { return f.confidence, f.err }
func (f *fakeModel) Close() error                         { return nil }

func callRec(det model.DetectorID, chrom string, pos int, ref, alt string, qual float64) model.CallRecord {
	return model.CallRecord{
		Chrom:    chrom,
		Pos:      pos,
		Ref:      ref,
		Alts:     []string{alt},
		Detector: det,
		Qual:     qual,
	}
}

func newTestPipeline(t *testing.T, r DetectorRunner, m *fakeModel, threshold float64) (*Pipeline, store.Store, string) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	outDir := t.TempDir()
	cfg := &config.Config{
		Scorer: config.ScorerConfig{Threshold: threshold},
	}

	p := New(cfg, st, r, m)
	p.preflight = func(model.RunInput) (*BAMInfo, error) {
		return &BAMInfo{Contigs: []string{"chr1", "chr2"}}, nil
	}
	return p, st, outDir
}

func TestPipelineRun_EndToEnd(t *testing.T) {
	r := &fakeRunner{results: []model.DetectorResult{
		{Detector: model.DetectorMpileup, Records: []model.CallRecord{
			callRec(model.DetectorMpileup, "chr1", 100, "A", "T", 60),
			callRec(model.DetectorMpileup, "chr1", 200, "G", "C", 20),
		}},
		{Detector: model.DetectorFreebayes, Records: []model.CallRecord{
			callRec(model.DetectorFreebayes, "chr1", 100, "A", "T", 50),
		}},
	}}
	p, st, outDir := newTestPipeline(t, r, &fakeModel{confidence: 0.9}, 0.5)

	output := filepath.Join(outDir, "out.vcf")
	input := model.RunInput{
		BAM:       "/data/sample.bam",
		Reference: "/data/ref.fa",
		Output:    output,
	}

	result, err := p.Run(context.Background(), input, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Sites)
	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 0, result.Rejected)
	assert.Equal(t, 3, result.Records)
	require.Len(t, result.Detectors, 2)
	assert.Equal(t, model.DetectorStatusSucceeded, result.Detectors[0].Status)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chr1\t100")
	assert.Contains(t, string(data), "chr1\t200")

	// Ledger has the completed run.
	runs, err := st.ListRuns(context.Background(), store.RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.NotNil(t, runs[0].Result)
	assert.Equal(t, 2, runs[0].Result.Accepted)

	phaseNames := make([]string, 0, len(result.Phases))
	for _, ph := range result.Phases {
		phaseNames = append(phaseNames, ph.Name)
	}
	assert.Equal(t, []string{"preflight", "detect", "merge", "score", "write"}, phaseNames)
}

func TestPipelineRun_DetectorFailureIsolated(t *testing.T) {
	r := &fakeRunner{results: []model.DetectorResult{
		{Detector: model.DetectorMpileup, Records: []model.CallRecord{
			callRec(model.DetectorMpileup, "chr1", 100, "A", "T", 60),
		}},
		{Detector: model.DetectorVarscan, Err: eris.New("exit status 1")},
	}}
	p, _, outDir := newTestPipeline(t, r, &fakeModel{confidence: 0.9}, 0.5)

	input := model.RunInput{
		BAM:       "/data/sample.bam",
		Reference: "/data/ref.fa",
		Output:    filepath.Join(outDir, "out.vcf"),
	}

	result, err := p.Run(context.Background(), input, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Accepted)
	require.Len(t, result.Detectors, 2)
	assert.Equal(t, model.DetectorStatusFailed, result.Detectors[1].Status)
	assert.Contains(t, result.Detectors[1].Error, "exit status 1")
}

func TestPipelineRun_AllDetectorsFailed(t *testing.T) {
	r := &fakeRunner{results: []model.DetectorResult{
		{Detector: model.DetectorMpileup, Err: eris.New("boom")},
		{Detector: model.DetectorFreebayes, Err: eris.New("boom")},
	}}
	p, st, outDir := newTestPipeline(t, r, &fakeModel{confidence: 0.9}, 0.5)

	output := filepath.Join(outDir, "out.vcf")
	input := model.RunInput{
		BAM:       "/data/sample.bam",
		Reference: "/data/ref.fa",
		Output:    output,
	}

	_, err := p.Run(context.Background(), input, t.TempDir())
	require.ErrorIs(t, err, ErrNoUsableDetectorOutputs)

	// No output file is produced for a failed run.
	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))

	runs, listErr := st.ListRuns(context.Background(), store.RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, listErr)
	require.Len(t, runs, 1)
}

func TestPipelineRun_ThresholdSplitsSites(t *testing.T) {
	r := &fakeRunner{results: []model.DetectorResult{
		{Detector: model.DetectorMpileup, Records: []model.CallRecord{
			callRec(model.DetectorMpileup, "chr1", 100, "A", "T", 60),
		}},
	}}
	p, _, outDir := newTestPipeline(t, r, &fakeModel{confidence: 0.3}, 0.5)

	output := filepath.Join(outDir, "out.vcf")
	input := model.RunInput{
		BAM:       "/data/sample.bam",
		Reference: "/data/ref.fa",
		Output:    output,
	}

	result, err := p.Run(context.Background(), input, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Accepted)
	assert.Equal(t, 1, result.Rejected)

	// Output exists and is well-formed even with zero accepted sites.
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "##fileformat=VCFv4.2"))
}

func TestPipelineRun_LowConfidenceSideChannel(t *testing.T) {
	r := &fakeRunner{results: []model.DetectorResult{
		{Detector: model.DetectorMpileup, Records: []model.CallRecord{
			callRec(model.DetectorMpileup, "chr1", 100, "A", "T", 60),
		}},
	}}
	p, _, outDir := newTestPipeline(t, r, &fakeModel{confidence: 0.3}, 0.5)

	lowConf := filepath.Join(outDir, "low.vcf")
	p.cfg.Scorer.LowConfidenceOutput = lowConf

	input := model.RunInput{
		BAM:       "/data/sample.bam",
		Reference: "/data/ref.fa",
		Output:    filepath.Join(outDir, "out.vcf"),
	}

	result, err := p.Run(context.Background(), input, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, lowConf, result.LowConfidence)

	data, err := os.ReadFile(lowConf)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chr1\t100")
}

func TestPipelineRun_ScoreFailureAbortsRun(t *testing.T) {
	r := &fakeRunner{results: []model.DetectorResult{
		{Detector: model.DetectorMpileup, Records: []model.CallRecord{
			callRec(model.DetectorMpileup, "chr1", 100, "A", "T", 60),
		}},
	}}
	p, _, outDir := newTestPipeline(t, r, &fakeModel{err: eris.New("session died")}, 0.5)

	output := filepath.Join(outDir, "out.vcf")
	input := model.RunInput{
		BAM:       "/data/sample.bam",
		Reference: "/data/ref.fa",
		Output:    output,
	}

	_, err := p.Run(context.Background(), input, t.TempDir())
	require.Error(t, err)

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPreflight_MissingBAM(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.fa")
	require.NoError(t, os.WriteFile(ref, []byte(">chr1\nACGT\n"), 0o644))

	_, err := Preflight(model.RunInput{
		BAM:       filepath.Join(dir, "missing.bam"),
		Reference: ref,
	})

	var pfErr *PreflightError
	require.ErrorAs(t, err, &pfErr)
	assert.Contains(t, pfErr.Reason, "alignment not readable")
}

func TestPreflight_MissingReference(t *testing.T) {
	_, err := Preflight(model.RunInput{
		BAM:       "/data/sample.bam",
		Reference: filepath.Join(t.TempDir(), "missing.fa"),
	})

	var pfErr *PreflightError
	require.ErrorAs(t, err, &pfErr)
	assert.Contains(t, pfErr.Reason, "reference not readable")
}

func TestPreflight_GarbageBAM(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.fa")
	require.NoError(t, os.WriteFile(ref, []byte(">chr1\nACGT\n"), 0o644))
	bamPath := filepath.Join(dir, "sample.bam")
	require.NoError(t, os.WriteFile(bamPath, []byte("this is not a bam"), 0o644))

	_, err := Preflight(model.RunInput{BAM: bamPath, Reference: ref})

	var pfErr *PreflightError
	require.ErrorAs(t, err, &pfErr)
	assert.Contains(t, pfErr.Reason, "header unreadable")
}
