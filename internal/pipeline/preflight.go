package pipeline

import (
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/evd-tools/eve/internal/model"
)

// PreflightError is a configuration-level input problem found before any
// detector starts. It always fails the run.
type PreflightError struct {
	Path   string
	Reason string
	Err    error
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("preflight: %s: %s", e.Path, e.Reason)
}

func (e *PreflightError) Unwrap() error {
	return e.Err
}

// BAMInfo is what preflight learns from the alignment header.
type BAMInfo struct {
	Contigs []string
	Reads   string // sort order as declared by the header
}

// Preflight validates the run's inputs before anything executes: the BAM
// must exist, carry a parseable coordinate-sorted header, and have an index;
// the reference must exist. Detectors themselves re-open the files, so only
// existence and header sanity are checked here.
func Preflight(input model.RunInput) (*BAMInfo, error) {
	if _, err := os.Stat(input.Reference); err != nil {
		return nil, &PreflightError{Path: input.Reference, Reason: "reference not readable", Err: err}
	}
	if input.Annotation != "" {
		if _, err := os.Stat(input.Annotation); err != nil {
			return nil, &PreflightError{Path: input.Annotation, Reason: "annotation not readable", Err: err}
		}
	}

	f, err := os.Open(input.BAM)
	if err != nil {
		return nil, &PreflightError{Path: input.BAM, Reason: "alignment not readable", Err: err}
	}
	defer f.Close()

	reader, err := bam.NewReader(f, 1)
	if err != nil {
		return nil, &PreflightError{Path: input.BAM, Reason: "alignment header unreadable", Err: err}
	}
	defer reader.Close()

	header := reader.Header()
	if header.SortOrder != sam.Coordinate {
		return nil, &PreflightError{
			Path:   input.BAM,
			Reason: fmt.Sprintf("alignment is %s-sorted, coordinate order required", header.SortOrder),
			Err:    eris.New("preflight: unsorted alignment"),
		}
	}

	if !indexExists(input.BAM) {
		return nil, &PreflightError{
			Path:   input.BAM,
			Reason: "alignment index (.bai) not found",
			Err:    os.ErrNotExist,
		}
	}

	info := &BAMInfo{Reads: header.SortOrder.String()}
	for _, ref := range header.Refs() {
		info.Contigs = append(info.Contigs, ref.Name())
	}

	zap.L().Info("preflight passed",
		zap.String("bam", input.BAM),
		zap.Int("contigs", len(info.Contigs)),
	)

	return info, nil
}

// indexExists accepts both index naming conventions: sample.bam.bai and
// sample.bai.
func indexExists(bamPath string) bool {
	if _, err := os.Stat(bamPath + ".bai"); err == nil {
		return true
	}
	trimmed := strings.TrimSuffix(bamPath, ".bam")
	if trimmed != bamPath {
		if _, err := os.Stat(trimmed + ".bai"); err == nil {
			return true
		}
	}
	return false
}
