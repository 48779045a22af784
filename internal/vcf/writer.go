package vcf

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/evd-tools/eve/internal/model"
)

// ScoredSite pairs a candidate site with its ensemble confidence.
type ScoredSite struct {
	Site       *model.CandidateSite
	Confidence float64
}

// WriteError means the destination file could not be finalized. A run that
// sees one must not report success.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("vcf: write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// WriteSites serializes scored sites to dest in the order given, one record
// per site with all supported alternate alleles. The file is written to a
// temporary sibling first and renamed into place only on full success, so a
// crash never leaves a partial destination. Zero sites still produce a
// well-formed, header-only file.
func WriteSites(dest string, sites []ScoredSite) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: dest, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".tmp*")
	if err != nil {
		return &WriteError{Path: dest, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if err := writeAll(tmp, sites); err != nil {
		tmp.Close()
		return &WriteError{Path: dest, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &WriteError{Path: dest, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Path: dest, Err: err}
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return &WriteError{Path: dest, Err: err}
	}
	return nil
}

func writeAll(f *os.File, sites []ScoredSite) error {
	w := bufio.NewWriter(f)

	fmt.Fprintln(w, "##fileformat=VCFv4.2")
	fmt.Fprintf(w, "##fileDate=%s\n", time.Now().UTC().Format("20060102"))
	fmt.Fprintln(w, "##source=eve")
	fmt.Fprintln(w, `##INFO=<ID=CONF,Number=1,Type=Float,Description="Ensemble classifier confidence">`)
	fmt.Fprintln(w, `##INFO=<ID=NDET,Number=1,Type=Integer,Description="Number of supporting detectors">`)
	fmt.Fprintln(w, `##INFO=<ID=DETS,Number=.,Type=String,Description="Supporting detector identities">`)
	fmt.Fprintln(w, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO")

	for _, scored := range sites {
		site := scored.Site
		supporters := site.Supporters()
		names := make([]string, len(supporters))
		for i, d := range supporters {
			names[i] = string(d)
		}

		fmt.Fprintf(w, "%s\t%d\t.\t%s\t%s\t.\tPASS\tCONF=%.4f;NDET=%d;DETS=%s\n",
			site.Chrom,
			site.Pos,
			site.Ref,
			strings.Join(site.AltAlleles(), ","),
			scored.Confidence,
			len(supporters),
			strings.Join(names, ","),
		)
	}

	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "flush")
	}
	return nil
}
