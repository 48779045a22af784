package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evd-tools/eve/internal/config"
	"github.com/evd-tools/eve/internal/model"
	"github.com/evd-tools/eve/internal/pipeline"
	"github.com/evd-tools/eve/internal/runner"
	"github.com/evd-tools/eve/internal/scorer"
)

var (
	runBAM        string
	runReference  string
	runAnnotation string
	runOutput     string
	runDetectors  []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full ensemble over one alignment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if cfg.Run.TimeoutSecs > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Run.TimeoutSecs)*time.Second)
			defer cancel()
		}

		runDir, err := createRunDir()
		if err != nil {
			return err
		}

		// From here on the log also lands in the run directory.
		if err := config.InitLogger(cfg.Log, filepath.Join(runDir, "eve.log")); err != nil {
			return eris.Wrap(err, "init run logger")
		}
		logSystemInfo(runDir)

		input, err := resolveInput(runDir)
		if err != nil {
			return err
		}

		detectorsCfg := cfg.Detectors
		if len(runDetectors) > 0 {
			detectorsCfg.Enabled = runDetectors
		}
		invocations, err := config.ResolveDetectors(detectorsCfg)
		if err != nil {
			return err
		}
		input.Detectors = make([]model.DetectorID, 0, len(invocations))
		for _, inv := range invocations {
			input.Detectors = append(input.Detectors, inv.Detector)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		mdl, err := scorer.NewONNXModel(cfg.Scorer)
		if err != nil {
			return err
		}
		defer mdl.Close() //nolint:errcheck

		p := pipeline.New(cfg, st, runner.New(detectorsCfg, invocations), mdl)

		result, err := p.Run(ctx, input, runDir)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.Int("sites", result.Sites),
			zap.Int("accepted", result.Accepted),
			zap.String("output", result.OutputPath),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// createRunDir makes this run's timestamped working directory.
func createRunDir() (string, error) {
	runDir := filepath.Join(cfg.Run.WorkDir, time.Now().UTC().Format("20060102150405"))
	for _, dir := range []string{runDir, filepath.Join(runDir, "mapped"), filepath.Join(runDir, "vcf")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", eris.Wrapf(err, "create run directory %s", dir)
		}
	}
	return runDir, nil
}

// resolveInput merges flags with configured reference paths.
func resolveInput(runDir string) (model.RunInput, error) {
	input := model.RunInput{
		BAM:        runBAM,
		Reference:  runReference,
		Annotation: runAnnotation,
		Output:     runOutput,
	}
	if input.Reference == "" {
		input.Reference = cfg.Reference.FASTA
	}
	if input.Annotation == "" {
		input.Annotation = cfg.Reference.Annotation
	}
	if input.Reference == "" {
		return input, eris.New("reference FASTA is required (--reference or reference.fasta)")
	}
	if input.Output == "" {
		input.Output = filepath.Join(runDir, "calls.vcf")
	}
	return input, nil
}

func logSystemInfo(runDir string) {
	hostname, _ := os.Hostname()
	zap.L().Info("starting eve",
		zap.String("version", version),
		zap.String("go", runtime.Version()),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH),
		zap.String("host", hostname),
		zap.String("run_dir", runDir),
	)
}

func init() {
	runCmd.Flags().StringVar(&runBAM, "bam", "", "coordinate-sorted, indexed alignment (required)")
	runCmd.Flags().StringVar(&runReference, "reference", "", "reference FASTA (default from config)")
	runCmd.Flags().StringVar(&runAnnotation, "annotation", "", "annotation file passed through to detectors")
	runCmd.Flags().StringVar(&runOutput, "output", "", "final VCF path (default <run-dir>/calls.vcf)")
	runCmd.Flags().StringSliceVar(&runDetectors, "detectors", nil, "detectors to run (default from config)")
	_ = runCmd.MarkFlagRequired("bam")
	rootCmd.AddCommand(runCmd)
}
