// Package adapter translates each detector's native output into canonical
// call records. One adapter exists per detector identity; the mapping is a
// closed set resolved at configuration-load time.
package adapter

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/evd-tools/eve/internal/model"
)

// Adapter parses one detector's raw output artifact into call records with
// the canonical 1-based, explicit-reference-allele convention. Empty output
// is zero records, not an error; output that cannot be parsed at all is a
// *MalformedOutputError.
type Adapter interface {
	Detector() model.DetectorID
	Parse(path string) ([]model.CallRecord, error)
}

// MalformedOutputError means a detector produced output its adapter cannot
// interpret. It is recovered per detector, exactly like an execution failure.
type MalformedOutputError struct {
	Detector model.DetectorID
	Path     string
	Err      error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("adapter: %s output %s is malformed: %v", e.Detector, e.Path, e.Err)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

// ForDetector returns the adapter bound to the given detector identity.
func ForDetector(id model.DetectorID) (Adapter, error) {
	switch id {
	case model.DetectorMpileup:
		return &MpileupAdapter{}, nil
	case model.DetectorFreebayes:
		return &FreebayesAdapter{}, nil
	case model.DetectorVarscan:
		return &VarscanAdapter{}, nil
	case model.DetectorHaplotypeCaller:
		return &HaplotypeCallerAdapter{}, nil
	default:
		return nil, eris.Errorf("adapter: no adapter for detector %q", id)
	}
}
