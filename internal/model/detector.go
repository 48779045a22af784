package model

import (
	"sort"

	"github.com/rotisserie/eris"
)

// DetectorID identifies one of the supported variant detectors. The set is
// closed: a detector is only usable if it has a format adapter and an
// invocation template bound at configuration-load time.
type DetectorID string

const (
	DetectorMpileup         DetectorID = "mpileup"
	DetectorFreebayes       DetectorID = "freebayes"
	DetectorVarscan         DetectorID = "varscan"
	DetectorHaplotypeCaller DetectorID = "haplotypecaller"
)

// AllDetectors lists every supported detector in canonical order. Feature
// extraction and supporter lists use this order so results never depend on
// map iteration.
var AllDetectors = []DetectorID{
	DetectorMpileup,
	DetectorFreebayes,
	DetectorVarscan,
	DetectorHaplotypeCaller,
}

var detectorRank = func() map[DetectorID]int {
	m := make(map[DetectorID]int, len(AllDetectors))
	for i, d := range AllDetectors {
		m[d] = i
	}
	return m
}()

// ParseDetectorID validates a detector name against the closed set.
func ParseDetectorID(name string) (DetectorID, error) {
	id := DetectorID(name)
	if _, ok := detectorRank[id]; !ok {
		return "", eris.Errorf("model: unknown detector %q", name)
	}
	return id, nil
}

// SortDetectors orders detector ids by canonical rank, in place.
func SortDetectors(ids []DetectorID) {
	sort.Slice(ids, func(i, j int) bool {
		return detectorRank[ids[i]] < detectorRank[ids[j]]
	})
}

// DetectorRank returns the canonical position of id in AllDetectors.
func DetectorRank(id DetectorID) int {
	return detectorRank[id]
}
