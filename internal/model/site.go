package model

import "sort"

// SiteKey identifies a candidate site: one locus with an explicit reference
// allele. Two call records belong to the same site iff all three fields match
// exactly.
type SiteKey struct {
	Chrom string
	Pos   int
	Ref   string
}

// AltSupport collects the call records, possibly from multiple detectors,
// that support one alternate allele at a site.
type AltSupport struct {
	Alt     string
	Records []CallRecord
}

// Detectors returns the distinct supporting detector ids in canonical order.
func (a *AltSupport) Detectors() []DetectorID {
	seen := make(map[DetectorID]bool, len(a.Records))
	var ids []DetectorID
	for _, rec := range a.Records {
		if !seen[rec.Detector] {
			seen[rec.Detector] = true
			ids = append(ids, rec.Detector)
		}
	}
	SortDetectors(ids)
	return ids
}

// CandidateSite aggregates all detectors' calls at one (chrom, pos, ref)
// locus for comparison and scoring. A site exists only while at least one
// detector supports it; it is created on first support and merged into
// thereafter.
type CandidateSite struct {
	Chrom string
	Pos   int
	Ref   string

	alts map[string]*AltSupport
}

// NewCandidateSite creates an empty site for the given key.
func NewCandidateSite(key SiteKey) *CandidateSite {
	return &CandidateSite{
		Chrom: key.Chrom,
		Pos:   key.Pos,
		Ref:   key.Ref,
		alts:  make(map[string]*AltSupport),
	}
}

// Key returns the site's identity tuple.
func (s *CandidateSite) Key() SiteKey {
	return SiteKey{Chrom: s.Chrom, Pos: s.Pos, Ref: s.Ref}
}

// AddRecord merges one call record into the site, one support entry per
// alternate allele the record reports.
func (s *CandidateSite) AddRecord(rec CallRecord) {
	for _, alt := range rec.Alts {
		sup, ok := s.alts[alt]
		if !ok {
			sup = &AltSupport{Alt: alt}
			s.alts[alt] = sup
		}
		sup.Records = append(sup.Records, rec)
	}
}

// AltAlleles returns the distinct alternate alleles observed at this site in
// lexicographic order.
func (s *CandidateSite) AltAlleles() []string {
	alts := make([]string, 0, len(s.alts))
	for alt := range s.alts {
		alts = append(alts, alt)
	}
	sort.Strings(alts)
	return alts
}

// Support returns the support entry for alt, or nil if no detector reported
// that allele here.
func (s *CandidateSite) Support(alt string) *AltSupport {
	return s.alts[alt]
}

// Supporters returns the distinct detectors supporting any allele at this
// site, in canonical order.
func (s *CandidateSite) Supporters() []DetectorID {
	seen := make(map[DetectorID]bool)
	var ids []DetectorID
	for _, sup := range s.alts {
		for _, rec := range sup.Records {
			if !seen[rec.Detector] {
				seen[rec.Detector] = true
				ids = append(ids, rec.Detector)
			}
		}
	}
	SortDetectors(ids)
	return ids
}

// Records returns every supporting call record at this site, ordered by
// alternate allele then canonical detector rank. The ordering makes
// downstream aggregation independent of insertion order.
func (s *CandidateSite) Records() []CallRecord {
	var recs []CallRecord
	for _, alt := range s.AltAlleles() {
		sup := s.alts[alt]
		sorted := make([]CallRecord, len(sup.Records))
		copy(sorted, sup.Records)
		sort.SliceStable(sorted, func(i, j int) bool {
			return DetectorRank(sorted[i].Detector) < DetectorRank(sorted[j].Detector)
		})
		recs = append(recs, sorted...)
	}
	return recs
}

// DominantAlt returns the alternate allele with the widest detector support,
// breaking ties toward the lexicographically smaller allele.
func (s *CandidateSite) DominantAlt() string {
	var best string
	bestN := -1
	for _, alt := range s.AltAlleles() {
		n := len(s.alts[alt].Detectors())
		if n > bestN {
			best, bestN = alt, n
		}
	}
	return best
}
