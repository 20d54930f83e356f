package summary

import (
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/molevol/etetab/codeml"
	"github.com/molevol/etetab/lrt"
)

func TestClassOf(t *testing.T) {
	cases := map[string]Class{
		"M0":     ClassNull,
		"M1":     ClassSite,
		"M8":     ClassSite,
		"bsA":    ClassBranchSite,
		"bsD":    ClassClade,
		"b_neut": ClassBranch,
	}
	for model, want := range cases {
		class, ok := ClassOf(model)
		if !ok || class != want {
			t.Errorf("ClassOf(%q) = %q, %v; want %q", model, class, ok, want)
		}
	}
	if _, ok := ClassOf("M99"); ok {
		t.Error("Expected unknown class for M99")
	}
}

func TestAddDuplicate(t *testing.T) {
	table := NewTable()
	res := &codeml.Result{Model: "M0", LnL: -1000, Np: 16}

	if err := table.Add("gene1", res); err != nil {
		t.Fatal("Unexpected error:", err)
	}
	// same model for a different gene is fine
	if err := table.Add("gene2", res); err != nil {
		t.Fatal("Unexpected error:", err)
	}

	err := table.Add("gene1", res)
	if err == nil {
		t.Fatal("Expected error for duplicate record")
	}
	if !errors.Is(err, ErrDuplicateRecord) {
		t.Error("Expected ErrDuplicateRecord, got:", err)
	}
}

func TestAddUnknownModel(t *testing.T) {
	table := NewTable()
	if err := table.Add("gene1", &codeml.Result{Model: "M99"}); err == nil {
		t.Fatal("Expected error for unknown model")
	}
}

func TestWriteCSV(t *testing.T) {
	table := NewTable()

	m0 := &codeml.Result{
		Model:       "M0",
		Description: "One dN/dS ratio",
		CodonModel:  "F3x4",
		LnL:         -2021.3483,
		Np:          16,
		TreeLength:  1.90227,
		Kappa:       2.28341,
		Omega:       0.08975,
		Branches: []codeml.Branch{
			{Branch: "8..9", T: 0.043, N: 475.8, S: 151.2, DNDS: 0.1128},
		},
	}
	m2 := &codeml.Result{
		Model: "M2",
		LnL:   -1995.1234,
		Np:    20,
		SiteClasses: &codeml.SiteClasses{
			Proportions: []float64{0.8, 0.15, 0.05},
			Omegas:      []codeml.OmegaRow{{Label: "w", Values: []float64{0.1, 1, 4.3}}},
		},
	}
	if err := table.Add("gene1", m0); err != nil {
		t.Fatal(err)
	}
	if err := table.Add("gene1", m2); err != nil {
		t.Fatal(err)
	}

	test, err := lrt.Compute(m0, m2)
	if err != nil {
		t.Fatal(err)
	}
	table.AddLRT("gene1", test)
	table.AddLRT("gene1", lrt.Test{
		Null: "M1", Alt: "M2", Statistic: -0.5, Df: 2,
		PValue: math.NaN(), NonConvergent: true,
	})

	table.AddBEB("gene1", "M2", []codeml.BEBSite{{Site: 12, AminoAcid: "L", Prob: 0.995}})
	table.AddError("gene2", "missing lnL line")

	outdir := filepath.Join(t.TempDir(), "tables")
	if err := table.WriteCSV(outdir); err != nil {
		t.Fatal("Unexpected error:", err)
	}

	for _, name := range []string{"model-null.csv", "model-site.csv", "lrt.csv",
		"branches.csv", "beb.csv", "errors.csv"} {
		if _, err := os.Stat(filepath.Join(outdir, name)); err != nil {
			t.Error("Missing output file:", name)
		}
	}
	// no branch-site models were added
	if _, err := os.Stat(filepath.Join(outdir, "model-branch-site.csv")); err == nil {
		t.Error("Unexpected model-branch-site.csv")
	}

	rows := readCSV(t, filepath.Join(outdir, "lrt.csv"))
	if len(rows) != 3 {
		t.Fatal("Wrong number of lrt rows:", len(rows))
	}
	if rows[0][0] != "file" || rows[0][6] != "note" {
		t.Error("Wrong lrt header:", rows[0])
	}
	if rows[1][1] != "M0" || rows[1][2] != "M2" {
		t.Error("Wrong lrt row:", rows[1])
	}
	// non-convergent tests have an empty p-value and a note
	if rows[2][5] != "" || rows[2][6] != "lnl1 < lnl0" {
		t.Error("Wrong non-convergent row:", rows[2])
	}

	rows = readCSV(t, filepath.Join(outdir, "model-site.csv"))
	if len(rows) != 2 {
		t.Fatal("Wrong number of site rows:", len(rows))
	}
	if !hasColumn(rows[0], "prop_0") || !hasColumn(rows[0], "w_2") {
		t.Error("Missing site-class columns:", rows[0])
	}

	rows = readCSV(t, filepath.Join(outdir, "beb.csv"))
	if len(rows) != 2 || rows[1][2] != "12" {
		t.Error("Wrong beb rows:", rows)
	}

	rows = readCSV(t, filepath.Join(outdir, "errors.csv"))
	if len(rows) != 2 || rows[1][0] != "gene2" {
		t.Error("Wrong error rows:", rows)
	}
}

func readCSV(t *testing.T, name string) [][]string {
	t.Helper()
	f, err := os.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func hasColumn(header []string, name string) bool {
	for _, h := range header {
		if h == name {
			return true
		}
	}
	return false
}
