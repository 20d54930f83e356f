package summary

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/molevol/etetab/codeml"
)

// WriteCSV writes all non-empty tables to outdir: one
// model-<class>.csv per model class, lrt.csv, branches.csv, beb.csv
// and errors.csv.
func (t *Table) WriteCSV(outdir string) error {
	if err := os.MkdirAll(outdir, 0777); err != nil {
		return errors.Wrap(err, "creating output directory")
	}
	for _, class := range classOrder {
		rows := t.classes[class]
		if len(rows) == 0 {
			continue
		}
		name := filepath.Join(outdir, fmt.Sprintf("model-%s.csv", class))
		if err := writeClassCSV(name, class, rows); err != nil {
			return err
		}
	}
	if err := t.writeLRTCSV(filepath.Join(outdir, "lrt.csv")); err != nil {
		return err
	}
	if err := t.writeBranchesCSV(filepath.Join(outdir, "branches.csv")); err != nil {
		return err
	}
	if err := t.writeBEBCSV(filepath.Join(outdir, "beb.csv")); err != nil {
		return err
	}
	if len(t.errs) > 0 {
		if err := t.writeErrorsCSV(filepath.Join(outdir, "errors.csv")); err != nil {
			return err
		}
	}
	return nil
}

// fmtFloat formats a float for CSV output; NaN becomes an empty cell.
func fmtFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// cells is one CSV row as an ordered key/value list, so that
// model-dependent columns (site classes, branch omegas) line up
// across rows of the same class.
type cells struct {
	keys   []string
	values map[string]string
}

func newCells() *cells {
	return &cells{values: make(map[string]string)}
}

func (c *cells) set(key, value string) {
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// writeCells writes rows of cells with a header that is the union of
// all keys in first-seen order. Rows missing a column get an empty
// cell.
func writeCells(name string, rows []*cells) error {
	var header []string
	seen := make(map[string]bool)
	for _, r := range rows {
		for _, k := range r.keys {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}

	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "creating csv file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for _, r := range rows {
		for i, k := range header {
			record[i] = r.values[k]
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// commonCells fills the columns shared by every model class.
func commonCells(gene string, res *codeml.Result) *cells {
	c := newCells()
	c.set("file", gene)
	c.set("model", res.Model)
	c.set("description", res.Description)
	c.set("codon_model", res.CodonModel)
	c.set("site_class_model", res.SiteClassModel)
	c.set("tree_length", fmtFloat(res.TreeLength))
	c.set("lnl", fmtFloat(res.LnL))
	c.set("np", strconv.Itoa(res.Np))
	c.set("kappa", fmtFloat(res.Kappa))
	return c
}

// siteClassCells flattens the site-class table into prop_<i> and
// <label>_<i> columns.
func siteClassCells(c *cells, sc *codeml.SiteClasses) {
	if sc == nil {
		return
	}
	for i, p := range sc.Proportions {
		c.set(fmt.Sprintf("prop_%d", i), fmtFloat(p))
	}
	for _, row := range sc.Omegas {
		label := sanitize(row.Label)
		for i, v := range row.Values {
			c.set(fmt.Sprintf("%s_%d", label, i), fmtFloat(v))
		}
	}
}

func sanitize(label string) string {
	out := make([]rune, 0, len(label))
	for _, r := range label {
		switch r {
		case ' ', '/', ':':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

func writeClassCSV(name string, class Class, rows []Row) error {
	out := make([]*cells, 0, len(rows))
	for _, row := range rows {
		res := row.Result
		c := commonCells(row.Gene, res)
		switch class {
		case ClassNull:
			c.set("omega", fmtFloat(res.Omega))
			c.set("dn", fmtFloat(res.DN))
			c.set("ds", fmtFloat(res.DS))
		case ClassSite:
			c.set("p0", fmtFloat(res.P0))
			c.set("p", fmtFloat(res.P))
			c.set("q", fmtFloat(res.Q))
			c.set("w", fmtFloat(res.W))
			siteClassCells(c, res.SiteClasses)
		case ClassBranchSite, ClassClade:
			siteClassCells(c, res.SiteClasses)
		case ClassBranch:
			for i, w := range res.Omegas {
				c.set(fmt.Sprintf("omega_%d", i), fmtFloat(w))
			}
			c.set("dn", fmtFloat(res.DN))
			c.set("ds", fmtFloat(res.DS))
		}
		out = append(out, c)
	}
	return writeCells(name, out)
}

func (t *Table) writeLRTCSV(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "creating lrt csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"file", "null", "alt", "statistic", "df", "pval", "note"}); err != nil {
		return err
	}
	for _, row := range t.lrts {
		test := row.Test
		rec := []string{
			row.Gene,
			test.Null,
			test.Alt,
			fmtFloat(test.Statistic),
			strconv.Itoa(test.Df),
			fmtFloat(test.PValue),
			test.Note(),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (t *Table) writeBranchesCSV(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "creating branches csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"file", "model", "branch", "t", "n", "s", "dnds", "dn", "ds", "n_dn", "s_ds"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, class := range classOrder {
		for _, row := range t.classes[class] {
			for _, br := range row.Result.Branches {
				rec := []string{
					row.Gene,
					row.Result.Model,
					br.Branch,
					fmtFloat(br.T),
					fmtFloat(br.N),
					fmtFloat(br.S),
					fmtFloat(br.DNDS),
					fmtFloat(br.DN),
					fmtFloat(br.DS),
					fmtFloat(br.NDN),
					fmtFloat(br.SDS),
				}
				if err := w.Write(rec); err != nil {
					return err
				}
			}
		}
	}
	w.Flush()
	return w.Error()
}

func (t *Table) writeBEBCSV(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "creating beb csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"file", "model", "site", "aa", "prob"}); err != nil {
		return err
	}
	for _, row := range t.beb {
		rec := []string{
			row.Gene,
			row.Model,
			strconv.Itoa(row.Site.Site),
			row.Site.AminoAcid,
			fmtFloat(row.Site.Prob),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (t *Table) writeErrorsCSV(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "creating errors csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"file", "error"}); err != nil {
		return err
	}
	for _, row := range t.errs {
		if err := w.Write([]string{row.Gene, row.Msg}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
