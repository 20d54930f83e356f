/*

Etetab-lrtcmp compares two LRT tables produced by etetab: one from
branch-site models and one from site models fitted to the same
alignments without the foreground species (a drop-out test).

A gene is reported as having a signal of positive selection on the
foreground branch (PS_fg) when the branch-site comparison is
significant and the site comparison is not: the foreground branch
experiences positive selection while no background species does.

*/
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/op/go-logging"
)

// setting up logging
var formatter = logging.MustStringFormatter(`%{message}`)
var log = logging.MustGetLogger("etetab-lrtcmp")

// sitePairs are the only site-model comparisons considered in the
// drop-out test.
var sitePairs = map[[2]string]bool{
	{"M1", "M2"}: true,
	{"M7", "M8"}: true,
}

// lrtRow is one row of an etetab lrt.csv table.
type lrtRow struct {
	file string
	null string
	alt  string
	pval float64
	// hasP is false for non-convergent tests, which have an empty
	// p-value cell.
	hasP bool
}

// readTable reads an lrt.csv file, locating columns by header name.
func readTable(fn string) ([]lrtRow, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range []string{"file", "null", "alt", "pval"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", fn, name)
		}
	}

	var rows []lrtRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := lrtRow{
			file: rec[col["file"]],
			null: rec[col["null"]],
			alt:  rec[col["alt"]],
		}
		if p := rec[col["pval"]]; p != "" {
			row.pval, err = strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, err
			}
			row.hasP = true
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// classify assigns the selection signal for one branch-site/site row
// pair at significance level alpha.
func classify(bs, site lrtRow, alpha float64) string {
	switch {
	case !bs.hasP || !site.hasP:
		return "poor_fit"
	case bs.pval <= alpha && site.pval > alpha:
		return "PS_fg"
	case bs.pval <= alpha && site.pval <= alpha:
		return "PS_fg_bg"
	case site.pval <= alpha:
		return "PS_bg"
	}
	return "no_PS"
}

func fmtP(row lrtRow) string {
	if !row.hasP {
		return ""
	}
	return strconv.FormatFloat(row.pval, 'g', -1, 64)
}

func main() {
	logging.SetFormatter(formatter)
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	logging.SetBackend(backend)

	pvalue := flag.Float64("pvalue", 0.05, "p-value threshold to filter results")
	flag.Parse()

	if flag.NArg() != 3 {
		log.Fatal("usage: etetab-lrtcmp [-pvalue a] branch-site.csv site.csv out.csv")
	}

	bsRows, err := readTable(flag.Arg(0))
	if err != nil {
		log.Fatal("Error reading branch-site table:", err)
	}
	siteRows, err := readTable(flag.Arg(1))
	if err != nil {
		log.Fatal("Error reading site table:", err)
	}

	// keep only the M1/M2 and M7/M8 site comparisons, grouped by gene
	siteByGene := make(map[string][]lrtRow)
	for _, row := range siteRows {
		if sitePairs[[2]string{row.null, row.alt}] {
			siteByGene[row.file] = append(siteByGene[row.file], row)
		}
	}

	out, err := os.Create(flag.Arg(2))
	if err != nil {
		log.Fatal("Error creating output file:", err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	header := []string{"file", "bs_null", "bs_alt", "bs_pval",
		"site_null", "site_alt", "site_pval", "signal"}
	if err := w.Write(header); err != nil {
		log.Fatal(err)
	}

	n := 0
	for _, bs := range bsRows {
		for _, site := range siteByGene[bs.file] {
			rec := []string{
				bs.file,
				bs.null, bs.alt, fmtP(bs),
				site.null, site.alt, fmtP(site),
				classify(bs, site, *pvalue),
			}
			if err := w.Write(rec); err != nil {
				log.Fatal(err)
			}
			n++
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatal(err)
	}

	log.Noticef("Wrote %d comparison(s)", n)
}
