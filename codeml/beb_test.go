package codeml

import (
	"strings"
	"testing"
)

const rstSite = `Summary of changes along branches.

Bayes Empirical Bayes (BEB) probabilities & postmean_w

Positively selected sites

	Prob(w>1)  mean w

   12 L 0.953 2.543 +- 1.021
   45 K 0.997** 3.921 +- 0.889
   50 - 0.991 1.500 +- 0.200
   61 T 0.512 1.102 +- 0.433
`

const rstBranchSite = `Bayes Empirical Bayes (BEB) probabilities for 4 classes (class)
(amino acids refer to 1st sequence: seq1)

   1 M   0.00325 0.00322 0.57993 0.41360 ( 3)  0.986
   2 K   0.00125 0.00122 0.70000 0.29500 ( 3)  0.995
   3 -   0.00125 0.00122 0.70000 0.29500 ( 3)  0.995
   4 R   0.90000 0.05000 0.02500 0.02500 ( 1)  0.150
`

func TestReadBEBSiteModel(t *testing.T) {
	beb, err := ReadBEB(strings.NewReader(rstSite), "rst", "M8")
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	// the gap row is skipped
	if len(beb) != 3 {
		t.Fatal("Wrong number of sites:", len(beb))
	}
	if beb[0].Site != 12 || beb[0].AminoAcid != "L" || !appreq(beb[0].Prob, 0.953) {
		t.Error("Wrong first site:", beb[0])
	}
	if !appreq(beb[0].MeanOmega, 2.543) {
		t.Error("Wrong mean omega:", beb[0].MeanOmega)
	}
	// asterisk significance markers are stripped
	if beb[1].Site != 45 || !appreq(beb[1].Prob, 0.997) {
		t.Error("Wrong second site:", beb[1])
	}
	if beb[2].Site != 61 || !appreq(beb[2].Prob, 0.512) {
		t.Error("Wrong third site:", beb[2])
	}
}

func TestReadBEBBranchSiteModel(t *testing.T) {
	beb, err := ReadBEB(strings.NewReader(rstBranchSite), "rst", "bsA")
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if len(beb) != 3 {
		t.Fatal("Wrong number of sites:", len(beb))
	}
	// positive-selection posterior is the sum of classes 2a and 2b
	if beb[0].Site != 1 || !appreq(beb[0].Prob, 0.57993+0.41360) {
		t.Error("Wrong first site:", beb[0])
	}
	if beb[1].Site != 2 || !appreq(beb[1].Prob, 0.995) {
		t.Error("Wrong second site:", beb[1])
	}
	if beb[2].Site != 4 || !appreq(beb[2].Prob, 0.05) {
		t.Error("Wrong third site:", beb[2])
	}
}

func TestReadBEBMissingSection(t *testing.T) {
	in := "Summary of changes along branches.\nNothing else here.\n"
	beb, err := ReadBEB(strings.NewReader(in), "rst", "M2")
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if len(beb) != 0 {
		t.Error("Expected no sites:", beb)
	}
}

func TestReadBEBMalformedRow(t *testing.T) {
	in := "Bayes Empirical Bayes (BEB) probabilities for 4 classes (class)\n" +
		"   1 M   0.00325 0.00322 bad 0.41360 ( 3)  0.986\n"
	if _, err := ReadBEB(strings.NewReader(in), "rst", "bsA"); err == nil {
		t.Fatal("Expected error for malformed probability")
	}
}
