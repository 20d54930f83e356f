// Package results reads one ETE3-evol gene directory and computes the
// likelihood-ratio tests for it.
package results

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"github.com/molevol/etetab/codeml"
	"github.com/molevol/etetab/lrt"
)

// log is the global logging variable.
var log = logging.MustGetLogger("results")

// outFileName and rstFileName are the fixed file names CodeML writes
// inside every model directory.
const (
	outFileName = "out"
	rstFileName = "rst"
)

// Gene holds the parsed results of every model fitted for one gene.
// The gene name is the directory base name, i.e. the ortholog or MSA
// identifier.
type Gene struct {
	Name   string                    `json:"name"`
	Models map[string]*codeml.Result `json:"models"`
}

// Skipped records a comparison that was excluded, with the reason.
type Skipped struct {
	Null   string
	Alt    string
	Reason string
}

// ModelFromDir extracts the short model name from an ETE3-evol model
// directory name, e.g. "M2.500333~runid" -> "M2".
func ModelFromDir(name string) string {
	m := strings.SplitN(name, "~", 2)[0]
	return strings.SplitN(m, ".", 2)[0]
}

// ListGeneDirs returns the sub-directories of path; each corresponds
// to one gene.
func ListGeneDirs(path string) ([]string, error) {
	entries, err := ioutil.ReadDir(path)
	if err != nil {
		return nil, errors.Wrap(err, "listing input directory")
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(path, e.Name()))
		}
	}
	return dirs, nil
}

// ReadGene parses every model output below the gene directory dir.
// When only is non-empty, models outside it are skipped. A parse
// failure of any model file fails the whole gene; failures are
// isolated per gene, not per model, so a gene summary is never built
// from a subset of its models.
func ReadGene(dir string, only map[string]bool) (*Gene, error) {
	gene := &Gene{
		Name:   filepath.Base(dir),
		Models: make(map[string]*codeml.Result),
	}

	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "listing gene directory")
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		model := ModelFromDir(e.Name())
		if len(only) > 0 && !only[model] {
			log.Debugf("%s: skipping model %s", gene.Name, model)
			continue
		}

		outPath := filepath.Join(dir, e.Name(), outFileName)
		res, err := readResultFile(outPath, model)
		if err != nil {
			return nil, err
		}

		if codeml.HasBEB(model) {
			rstPath := filepath.Join(dir, e.Name(), rstFileName)
			beb, err := readBEBFile(rstPath, model)
			if err != nil {
				return nil, err
			}
			res.BEB = beb
		}

		gene.Models[model] = res
	}

	if len(gene.Models) == 0 {
		return nil, errors.Errorf("no model outputs found in %s", dir)
	}

	return gene, nil
}

func readResultFile(path, model string) (*codeml.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening model output")
	}
	defer f.Close()
	return codeml.ReadResult(f, path, model)
}

func readBEBFile(path, model string) ([]codeml.BEBSite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening rst file")
	}
	defer f.Close()
	return codeml.ReadBEB(f, path, model)
}

// ModelNames returns the gene's model names in sorted order.
func (g *Gene) ModelNames() []string {
	names := make([]string, 0, len(g.Models))
	for m := range g.Models {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

// Tests runs every valid likelihood-ratio test among the gene's
// models. Pairs outside the nested-model table are excluded silently;
// pairs rejected by the engine (non-positive degrees of freedom) are
// returned as skipped so they can be reported.
func (g *Gene) Tests() (tests []lrt.Test, skipped []Skipped) {
	for _, null := range g.ModelNames() {
		for _, alt := range lrt.Alternatives(null) {
			altRes, ok := g.Models[alt]
			if !ok {
				continue
			}
			test, err := lrt.Compute(g.Models[null], altRes)
			if err != nil {
				log.Warningf("%s: skipping %s vs %s: %v", g.Name, null, alt, err)
				skipped = append(skipped, Skipped{Null: null, Alt: alt, Reason: err.Error()})
				continue
			}
			if test.NonConvergent {
				log.Warningf("%s: negative LRT statistic for %s vs %s (D=%g)",
					g.Name, null, alt, test.Statistic)
			}
			tests = append(tests, test)
		}
	}
	return tests, skipped
}
