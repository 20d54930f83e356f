package main

import (
	"strings"
	"testing"

	"github.com/molevol/etetab/codeml"
	"github.com/molevol/etetab/results"
	"github.com/molevol/etetab/summary"
)

func testGene(models map[string]*codeml.Result) *results.Gene {
	return &results.Gene{Name: "gene1", Models: models}
}

func TestMergeGeneUnknownModel(t *testing.T) {
	table := summary.NewTable()
	run := &RunSummary{}
	gene := testGene(map[string]*codeml.Result{
		"M0": {Model: "M0", LnL: -2021.3483, Np: 16},
		"M3": {Model: "M3", LnL: -2000.0, Np: 20},
	})

	// a model outside the class table must not abort the batch owner
	mergeGene(table, run, gene)

	if table.NRows() != 1 {
		t.Error("Wrong number of rows:", table.NRows())
	}
	errs := table.Errors()
	if len(errs) != 1 || !strings.Contains(errs[0].Msg, "M3") {
		t.Error("Expected an error row for the unknown model:", errs)
	}
}

func TestMergeGeneBEBGate(t *testing.T) {
	beb := []codeml.BEBSite{{Site: 12, AminoAcid: "L", Prob: 0.995}}

	// D = 2*(2021.3483-1995.1234) is far above qchisq(0.9, df=4)
	table := summary.NewTable()
	run := &RunSummary{}
	gene := testGene(map[string]*codeml.Result{
		"M0": {Model: "M0", LnL: -2021.3483, Np: 16},
		"M2": {Model: "M2", LnL: -1995.1234, Np: 20, BEB: beb},
	})
	mergeGene(table, run, gene)
	if len(table.BEBs()) != 1 {
		t.Error("Expected selected sites for a significant model:", table.BEBs())
	}

	// a negligible improvement is below the threshold
	table = summary.NewTable()
	gene = testGene(map[string]*codeml.Result{
		"M0": {Model: "M0", LnL: -2021.3483, Np: 16},
		"M2": {Model: "M2", LnL: -2021.3, Np: 20, BEB: beb},
	})
	mergeGene(table, run, gene)
	if len(table.BEBs()) != 0 {
		t.Error("Unexpected selected sites for a non-significant model:", table.BEBs())
	}
	// the fit itself is still reported
	if table.NRows() != 2 || len(table.LRTs()) != 1 {
		t.Error("Wrong table contents:", table.NRows(), len(table.LRTs()))
	}
}

func TestCacheKey(t *testing.T) {
	if got := cacheKey("/data/gene1", nil); got != "gene1" {
		t.Error("Wrong key for unfiltered run:", got)
	}

	a := cacheKey("/data/gene1", map[string]bool{"M7": true, "M8": true})
	b := cacheKey("/data/gene1", map[string]bool{"M8": true, "M7": true})
	if a != b {
		t.Error("Key depends on map order:", a, b)
	}

	// a filtered run must never share a key with a different filter
	if a == cacheKey("/data/gene1", nil) {
		t.Error("Filtered and unfiltered runs share a key:", a)
	}
	if a == cacheKey("/data/gene1", map[string]bool{"M7": true}) {
		t.Error("Different filters share a key:", a)
	}
}
