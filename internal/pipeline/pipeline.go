// Package pipeline orchestrates one ensemble run: preflight the inputs, fan
// the detectors out, merge their calls into candidate sites, score each site,
// and write the reconciled VCF.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/evd-tools/eve/internal/config"
	"github.com/evd-tools/eve/internal/merge"
	"github.com/evd-tools/eve/internal/model"
	"github.com/evd-tools/eve/internal/scorer"
	"github.com/evd-tools/eve/internal/store"
	"github.com/evd-tools/eve/internal/vcf"
)

// ErrNoUsableDetectorOutputs means every detector failed, so there is
// nothing to reconcile. Individual detector failures never abort a run;
// losing all of them does.
var ErrNoUsableDetectorOutputs = eris.New("pipeline: no detector produced usable output")

// DetectorRunner abstracts detector execution for the pipeline. The real
// implementation is runner.Runner; tests substitute canned results.
type DetectorRunner interface {
	Run(ctx context.Context, input model.RunInput, runDir string) []model.DetectorResult
}

// Pipeline orchestrates the phases of an ensemble run.
type Pipeline struct {
	cfg    *config.Config
	store  store.Store
	runner DetectorRunner
	model  scorer.Model

	preflight func(model.RunInput) (*BAMInfo, error)
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, r DetectorRunner, m scorer.Model) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		runner:    r,
		model:     m,
		preflight: Preflight,
	}
}

// Run executes the full ensemble pipeline for one input set. runDir is this
// run's private working directory; detector artifacts and logs live under it.
func (p *Pipeline) Run(ctx context.Context, input model.RunInput, runDir string) (*model.RunResult, error) {
	log := zap.L().With(zap.String("bam", input.BAM))
	log.Info("pipeline: starting run", zap.String("run_dir", runDir))

	result := &model.RunResult{OutputPath: input.Output}

	run, err := p.store.CreateRun(ctx, input)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) error {
		phase, phaseErr := p.store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		start := time.Now()
		phaseResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{}
		}
		phaseResult.Name = name
		phaseResult.Duration = duration

		if fnErr != nil {
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			phaseResult.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if phase != nil {
			_ = p.store.CompletePhase(ctx, phase.ID, phaseResult)
		}
		result.Phases = append(result.Phases, *phaseResult)
		return fnErr
	}

	fail := func(err error) (*model.RunResult, error) {
		result.Error = err.Error()
		if updateErr := p.store.UpdateRunResult(ctx, run.ID, model.RunStatusFailed, result); updateErr != nil {
			log.Warn("pipeline: failed to persist failure", zap.Error(updateErr))
		}
		return result, err
	}

	// ===== Preflight =====
	setStatus(model.RunStatusPreflight)

	var info *BAMInfo
	if err := trackPhase("preflight", func() (*model.PhaseResult, error) {
		var pfErr error
		info, pfErr = p.preflight(input)
		if pfErr != nil {
			return nil, pfErr
		}
		stageInputs(runDir, input, log)
		return &model.PhaseResult{
			Metadata: map[string]any{"contigs": len(info.Contigs)},
		}, nil
	}); err != nil {
		return fail(err)
	}

	// ===== Detect =====
	setStatus(model.RunStatusDetecting)

	var detectorResults []model.DetectorResult
	var usable []model.DetectorID
	if err := trackPhase("detect", func() (*model.PhaseResult, error) {
		detectorResults = p.runner.Run(ctx, input, runDir)

		outcomes := make([]model.DetectorOutcome, 0, len(detectorResults))
		for _, dr := range detectorResults {
			outcome := model.DetectorOutcome{
				Detector: dr.Detector,
				Records:  len(dr.Records),
				Duration: dr.Duration.Milliseconds(),
			}
			if dr.Failed() {
				outcome.Status = model.DetectorStatusFailed
				outcome.Error = dr.Err.Error()
			} else {
				outcome.Status = model.DetectorStatusSucceeded
				usable = append(usable, dr.Detector)
				result.Records += len(dr.Records)
			}
			result.Detectors = append(result.Detectors, outcome)
			outcomes = append(outcomes, outcome)
		}

		if recErr := p.store.RecordDetectors(ctx, run.ID, outcomes); recErr != nil {
			log.Warn("pipeline: failed to record detector outcomes", zap.Error(recErr))
		}

		if len(usable) == 0 {
			return nil, ErrNoUsableDetectorOutputs
		}
		return &model.PhaseResult{
			Metadata: map[string]any{
				"usable":  len(usable),
				"failed":  len(detectorResults) - len(usable),
				"records": result.Records,
			},
		}, nil
	}); err != nil {
		return fail(err)
	}

	// ===== Merge =====
	setStatus(model.RunStatusMerging)

	var sites []*model.CandidateSite
	if err := trackPhase("merge", func() (*model.PhaseResult, error) {
		sites = merge.Merge(detectorResults)
		result.Sites = len(sites)
		return &model.PhaseResult{
			Metadata: map[string]any{"sites": len(sites)},
		}, nil
	}); err != nil {
		return fail(err)
	}

	// ===== Score =====
	setStatus(model.RunStatusScoring)

	var accepted, rejected []vcf.ScoredSite
	if err := trackPhase("score", func() (*model.PhaseResult, error) {
		sc := scorer.New(p.model, p.cfg.Scorer.Threshold, usable)
		for _, site := range sites {
			confidence, keep, scoreErr := sc.Score(site)
			if scoreErr != nil {
				return nil, scoreErr
			}
			scored := vcf.ScoredSite{Site: site, Confidence: confidence}
			if keep {
				accepted = append(accepted, scored)
			} else {
				rejected = append(rejected, scored)
			}
		}
		result.Accepted = len(accepted)
		result.Rejected = len(rejected)
		return &model.PhaseResult{
			Metadata: map[string]any{
				"accepted":  len(accepted),
				"rejected":  len(rejected),
				"threshold": sc.Threshold(),
			},
		}, nil
	}); err != nil {
		return fail(err)
	}

	// ===== Write =====
	setStatus(model.RunStatusWriting)

	if err := trackPhase("write", func() (*model.PhaseResult, error) {
		if writeErr := vcf.WriteSites(input.Output, accepted); writeErr != nil {
			return nil, writeErr
		}
		if p.cfg.Scorer.LowConfidenceOutput != "" && len(rejected) > 0 {
			if writeErr := vcf.WriteSites(p.cfg.Scorer.LowConfidenceOutput, rejected); writeErr != nil {
				return nil, writeErr
			}
			result.LowConfidence = p.cfg.Scorer.LowConfidenceOutput
		}
		return nil, nil
	}); err != nil {
		return fail(err)
	}

	if err := p.store.UpdateRunResult(ctx, run.ID, model.RunStatusComplete, result); err != nil {
		log.Warn("pipeline: failed to persist result", zap.Error(err))
	}

	log.Info("pipeline: run complete",
		zap.Int("sites", result.Sites),
		zap.Int("accepted", result.Accepted),
		zap.Int("rejected", result.Rejected),
		zap.String("output", input.Output),
	)

	return result, nil
}

// stageInputs links the alignment into the run directory so a run's working
// tree is self-describing. Failure to link is cosmetic.
func stageInputs(runDir string, input model.RunInput, log *zap.Logger) {
	mapped := filepath.Join(runDir, "mapped")
	if err := os.MkdirAll(mapped, 0o755); err != nil {
		log.Warn("pipeline: failed to create mapped dir", zap.Error(err))
		return
	}
	dst := filepath.Join(mapped, filepath.Base(input.BAM))
	if err := os.Symlink(input.BAM, dst); err != nil && !os.IsExist(err) {
		log.Warn("pipeline: failed to stage alignment", zap.Error(err))
	}
}
