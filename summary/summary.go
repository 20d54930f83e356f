// Package summary accumulates per-gene CodeML results into the output
// tables.
package summary

import (
	"github.com/pkg/errors"

	"github.com/molevol/etetab/codeml"
	"github.com/molevol/etetab/lrt"
)

// ErrDuplicateRecord indicates that the same (gene, model) pair was
// added twice. This is a caller bug, not an input problem.
var ErrDuplicateRecord = errors.New("duplicate record")

// Class groups models into summary tables.
type Class string

// Model classes, one output table per class.
const (
	ClassNull       Class = "null"
	ClassSite       Class = "site"
	ClassBranchSite Class = "branch-site"
	ClassClade      Class = "clade"
	ClassBranch     Class = "branch"
)

// classModels maps every known model to its class.
var classModels = map[Class][]string{
	ClassNull:       {"M0"},
	ClassSite:       {"M1", "M2", "M7", "M8"},
	ClassBranchSite: {"bsA", "bsA1"},
	ClassClade:      {"bsC", "bsD"},
	ClassBranch:     {"b_free", "b_neut"},
}

// classOrder fixes the order of the per-class output files.
var classOrder = []Class{ClassNull, ClassSite, ClassBranchSite, ClassClade, ClassBranch}

// ClassOf returns the class of a model name.
func ClassOf(model string) (Class, bool) {
	for class, models := range classModels {
		for _, m := range models {
			if m == model {
				return class, true
			}
		}
	}
	return "", false
}

// Row is one summary table row: one model fit for one gene.
type Row struct {
	Gene   string
	Result *codeml.Result
}

// LRTRow is one likelihood-ratio test for one gene.
type LRTRow struct {
	Gene string
	Test lrt.Test
}

// BEBRow is one selected site for one gene and model.
type BEBRow struct {
	Gene  string
	Model string
	Site  codeml.BEBSite
}

// ErrorRow records a per-unit failure or a skipped comparison for the
// final report.
type ErrorRow struct {
	Gene string
	Msg  string
}

type recordKey struct {
	gene  string
	model string
}

// Table accumulates rows across genes. It is append-only and owned by
// a single goroutine; workers deliver completed per-gene results to
// the owner, which merges them here.
type Table struct {
	classes map[Class][]Row
	lrts    []LRTRow
	beb     []BEBRow
	errs    []ErrorRow
	seen    map[recordKey]bool
}

// NewTable creates an empty summary table.
func NewTable() *Table {
	return &Table{
		classes: make(map[Class][]Row),
		seen:    make(map[recordKey]bool),
	}
}

// Add appends one model fit for a gene. Re-adding the same
// (gene, model) pair returns ErrDuplicateRecord. Models of unknown
// class are rejected the same way a caller bug would be: by an error,
// not silently.
func (t *Table) Add(gene string, res *codeml.Result) error {
	class, ok := ClassOf(res.Model)
	if !ok {
		return errors.Errorf("unknown model class for %q", res.Model)
	}
	key := recordKey{gene: gene, model: res.Model}
	if t.seen[key] {
		return errors.Wrapf(ErrDuplicateRecord, "gene %q, model %q", gene, res.Model)
	}
	t.seen[key] = true
	t.classes[class] = append(t.classes[class], Row{Gene: gene, Result: res})
	return nil
}

// AddLRT appends one likelihood-ratio test row.
func (t *Table) AddLRT(gene string, test lrt.Test) {
	t.lrts = append(t.lrts, LRTRow{Gene: gene, Test: test})
}

// AddBEB appends selected sites for one gene and model.
func (t *Table) AddBEB(gene, model string, sel []codeml.BEBSite) {
	for _, s := range sel {
		t.beb = append(t.beb, BEBRow{Gene: gene, Model: model, Site: s})
	}
}

// AddError records a failed gene or skipped comparison for the final
// report. Nothing is silently swallowed.
func (t *Table) AddError(gene, msg string) {
	t.errs = append(t.errs, ErrorRow{Gene: gene, Msg: msg})
}

// Errors returns the accumulated error report rows.
func (t *Table) Errors() []ErrorRow {
	return t.errs
}

// LRTs returns the accumulated likelihood-ratio test rows.
func (t *Table) LRTs() []LRTRow {
	return t.lrts
}

// BEBs returns the accumulated selected-site rows.
func (t *Table) BEBs() []BEBRow {
	return t.beb
}

// NRows returns the total number of summary rows across all classes.
func (t *Table) NRows() (n int) {
	for _, rows := range t.classes {
		n += len(rows)
	}
	return
}
