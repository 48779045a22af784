// Package merge unifies the call records produced by independent detectors
// into per-locus candidate sites with per-detector support.
package merge

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/evd-tools/eve/internal/model"
)

// Merge groups all successful detectors' call records by exact
// (chrom, pos, ref, alt) identity and rolls groups sharing a (chrom, pos,
// ref) key up into one candidate site. Failed detector results contribute
// nothing. The returned sites are in ascending (chrom, pos, ref) order with
// natural-numeric chromosome ordering, independent of the order in which
// results are supplied.
func Merge(results []model.DetectorResult) []*model.CandidateSite {
	sites := make(map[model.SiteKey]*model.CandidateSite)

	var records, skipped int
	for _, res := range results {
		if res.Failed() {
			skipped++
			continue
		}
		for _, rec := range res.Records {
			key := model.SiteKey{Chrom: rec.Chrom, Pos: rec.Pos, Ref: rec.Ref}
			site, ok := sites[key]
			if !ok {
				site = model.NewCandidateSite(key)
				sites[key] = site
			}
			site.AddRecord(rec)
			records++
		}
	}

	ordered := make([]*model.CandidateSite, 0, len(sites))
	for _, site := range sites {
		ordered = append(ordered, site)
	}
	SortSites(ordered)

	zap.L().Debug("merge: unified call records",
		zap.Int("records", records),
		zap.Int("sites", len(ordered)),
		zap.Int("failed_detectors", skipped),
	)
	return ordered
}

// SortSites orders candidate sites ascending by (chrom, pos, ref), in place.
func SortSites(sites []*model.CandidateSite) {
	sort.SliceStable(sites, func(i, j int) bool {
		a, b := sites[i], sites[j]
		if c := CompareChrom(a.Chrom, b.Chrom); c != 0 {
			return c < 0
		}
		if a.Pos != b.Pos {
			return a.Pos < b.Pos
		}
		return strings.Compare(a.Ref, b.Ref) < 0
	})
}
