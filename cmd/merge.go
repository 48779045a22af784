package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evd-tools/eve/internal/adapter"
	"github.com/evd-tools/eve/internal/merge"
	"github.com/evd-tools/eve/internal/model"
	"github.com/evd-tools/eve/internal/scorer"
	"github.com/evd-tools/eve/internal/vcf"
)

var (
	mergeInputs []string
	mergeOutput string
)

// mergeCmd reconciles detector outputs that already exist on disk, skipping
// execution. Useful when detectors ran elsewhere or a run's artifacts are
// being re-scored with a newer model.
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge and score existing detector outputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(mergeInputs) == 0 {
			return eris.New("at least one --vcf detector=path is required")
		}

		var results []model.DetectorResult
		var usable []model.DetectorID
		for _, pair := range mergeInputs {
			name, path, ok := strings.Cut(pair, "=")
			if !ok {
				return eris.Errorf("invalid --vcf value %q, expected detector=path", pair)
			}
			id, err := model.ParseDetectorID(name)
			if err != nil {
				return err
			}
			ad, err := adapter.ForDetector(id)
			if err != nil {
				return err
			}

			records, err := ad.Parse(path)
			if err != nil {
				zap.L().Warn("skipping unusable detector output",
					zap.String("detector", name),
					zap.String("path", path),
					zap.Error(err),
				)
				results = append(results, model.DetectorResult{Detector: id, Err: err})
				continue
			}
			results = append(results, model.DetectorResult{Detector: id, Records: records})
			usable = append(usable, id)
		}

		if len(usable) == 0 {
			return eris.New("no usable detector outputs to merge")
		}

		sites := merge.Merge(results)

		mdl, err := scorer.NewONNXModel(cfg.Scorer)
		if err != nil {
			return err
		}
		defer mdl.Close() //nolint:errcheck

		sc := scorer.New(mdl, cfg.Scorer.Threshold, usable)
		var accepted, rejected []vcf.ScoredSite
		for _, site := range sites {
			confidence, keep, err := sc.Score(site)
			if err != nil {
				return err
			}
			scored := vcf.ScoredSite{Site: site, Confidence: confidence}
			if keep {
				accepted = append(accepted, scored)
			} else {
				rejected = append(rejected, scored)
			}
		}

		if err := vcf.WriteSites(mergeOutput, accepted); err != nil {
			return err
		}
		if cfg.Scorer.LowConfidenceOutput != "" && len(rejected) > 0 {
			if err := vcf.WriteSites(cfg.Scorer.LowConfidenceOutput, rejected); err != nil {
				return err
			}
		}

		summary := map[string]any{
			"sites":    len(sites),
			"accepted": len(accepted),
			"rejected": len(rejected),
			"output":   mergeOutput,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	mergeCmd.Flags().StringArrayVar(&mergeInputs, "vcf", nil, "detector output as detector=path (repeatable)")
	mergeCmd.Flags().StringVar(&mergeOutput, "output", "", "final VCF path (required)")
	_ = mergeCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(mergeCmd)
}
