// Package codeml parses CodeML output files produced by ETE3-evol runs.
package codeml

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ParseError indicates a malformed or incomplete CodeML output file.
// Missing required fields (lnL, np) are a parse failure, never a
// silent default.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// OmegaRow is one labeled row of the site-class table. Site models
// have a single "w" row, branch-site models have background and
// foreground rows, clade models one row per branch type.
type OmegaRow struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// SiteClasses stores per-class proportions together with the omega
// rows of the site-class table.
type SiteClasses struct {
	Proportions []float64  `json:"proportions"`
	Omegas      []OmegaRow `json:"omegas"`
}

// Branch stores per-branch estimates from the dN & dS table.
type Branch struct {
	Branch string  `json:"branch"`
	T      float64 `json:"t"`
	N      float64 `json:"N"`
	S      float64 `json:"S"`
	DNDS   float64 `json:"dNdS"`
	DN     float64 `json:"dN"`
	DS     float64 `json:"dS"`
	NDN    float64 `json:"NdN"`
	SDS    float64 `json:"SdS"`
}

// BEBSite is one site from the Bayes Empirical Bayes output. Prob is
// the posterior probability of the positive-selection class; for
// branch-site models this is the sum of the 2a and 2b classes.
type BEBSite struct {
	Site      int     `json:"site"`
	AminoAcid string  `json:"aminoAcid"`
	Prob      float64 `json:"prob"`
	MeanOmega float64 `json:"meanOmega,omitempty"`
}

// Result holds the values parsed from a single CodeML output file.
// A Result is immutable once parsed.
type Result struct {
	// Model is the short model name taken from the directory name
	// (e.g. M2, bsA).
	Model string `json:"model"`
	// Description is the model description line from the output.
	Description string `json:"description,omitempty"`
	// CodonModel is the codon frequency model (e.g. F3x4).
	CodonModel string `json:"codonModel,omitempty"`
	// SiteClassModel is the site-class model line, if present.
	SiteClassModel string `json:"siteClassModel,omitempty"`
	// LnL is the maximum log-likelihood.
	LnL float64 `json:"lnL"`
	// Np is the number of free parameters.
	Np int `json:"np"`

	TreeLength float64 `json:"treeLength,omitempty"`
	Kappa      float64 `json:"kappa,omitempty"`
	// Omega is the single dN/dS ratio (M0).
	Omega float64 `json:"omega,omitempty"`
	// Omegas are per-branch-class ratios (b_free, b_neut).
	Omegas []float64 `json:"omegas,omitempty"`
	// DN and DS are tree lengths for dN and dS.
	DN float64 `json:"dN,omitempty"`
	DS float64 `json:"dS,omitempty"`
	// P0, P, Q and W are the beta mixture parameters (M7, M8).
	P0 float64 `json:"p0,omitempty"`
	P  float64 `json:"p,omitempty"`
	Q  float64 `json:"q,omitempty"`
	W  float64 `json:"w,omitempty"`

	SiteClasses *SiteClasses `json:"siteClasses,omitempty"`
	Branches    []Branch     `json:"branches,omitempty"`
	// BEB holds per-site posteriors, parsed from the rst file for
	// models that produce them.
	BEB []BEBSite `json:"beb,omitempty"`
}

// lnLRe matches the likelihood header line, e.g.
// lnL(ntime: 14  np: 18):  -2021.348300     +0.000000
var lnLRe = regexp.MustCompile(`^lnL\(ntime:\s*\d+\s+np:\s*(\d+)\):\s*(\S+)`)

// parRe matches parameter assignments in the "Parameters in M7/M8"
// section, e.g. "p0 =   0.91352  p =   0.39752 q =   1.27043".
var parRe = regexp.MustCompile(`\(?(p0|p1|p|q|w)\s*=\s*([0-9eE.+-]+)`)

// HasBEB reports whether a model produces Bayes Empirical Bayes
// output in its rst file.
func HasBEB(model string) bool {
	switch model {
	case "M2", "M8", "bsA":
		return true
	}
	return false
}

// IsBranchSite reports whether the BEB table uses the branch-site
// layout (four site-class probabilities per site).
func IsBranchSite(model string) bool {
	return strings.HasPrefix(model, "bs")
}

// ReadResult parses a CodeML "out" file. The short model name is
// taken from the caller (it comes from the directory name, not the
// file). An absent or malformed lnL header is a *ParseError.
func ReadResult(rd io.Reader, file, model string) (*Result, error) {
	res := &Result{Model: model}

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	// site-class table state: 0 outside, 1 header seen, 2 collecting rows
	const (
		scOutside = iota
		scExpect
		scRows
	)

	var (
		lineNo    int
		haveLnL   bool
		inParams  bool
		inBranchT bool
		scState   = scOutside
	)

	for scanner.Scan() {
		line := scanner.Text()
		lineNo++
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "Model:"):
			res.Description = strings.Trim(strings.TrimPrefix(line, "Model:"), " ,")
			continue
		case strings.HasPrefix(line, "Model ") && strings.Contains(line, ":"):
			// NSsites header, e.g. "Model 2: PositiveSelection".
			parts := strings.SplitN(line, ":", 2)
			res.Description = strings.TrimSpace(parts[1])
			continue
		case strings.HasPrefix(line, "Codon frequency model:"):
			res.CodonModel = strings.TrimSpace(strings.TrimPrefix(line, "Codon frequency model:"))
			continue
		case strings.HasPrefix(line, "Site-class model:"):
			res.SiteClassModel = strings.TrimSpace(strings.TrimPrefix(line, "Site-class model:"))
			continue
		case strings.HasPrefix(line, "lnL("):
			m := lnLRe.FindStringSubmatch(line)
			if m == nil {
				return nil, &ParseError{File: file, Line: lineNo, Msg: "malformed lnL line"}
			}
			np, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, &ParseError{File: file, Line: lineNo, Msg: "malformed np value: " + m[1]}
			}
			lnL, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				return nil, &ParseError{File: file, Line: lineNo, Msg: "malformed lnL value: " + m[2]}
			}
			res.Np = np
			res.LnL = lnL
			haveLnL = true
			continue
		case strings.HasPrefix(line, "kappa (ts/tv) ="):
			res.Kappa = lastFloat(line)
			continue
		case strings.HasPrefix(line, "tree length ="):
			res.TreeLength = lastFloat(line)
			continue
		case strings.HasPrefix(line, "tree length for dN:"):
			res.DN = lastFloat(line)
			continue
		case strings.HasPrefix(line, "tree length for dS:"):
			res.DS = lastFloat(line)
			continue
		case strings.HasPrefix(line, "omega (dN/dS) ="):
			res.Omega = lastFloat(line)
			continue
		case strings.HasPrefix(line, "w (dN/dS) for branches:"):
			res.Omegas = floats(strings.TrimPrefix(line, "w (dN/dS) for branches:"))
			continue
		case strings.HasPrefix(line, "Parameters in M"):
			inParams = true
			continue
		case strings.HasPrefix(line, "dN & dS for each branch"):
			inBranchT = true
			continue
		case strings.HasPrefix(trimmed, "site class") || strings.HasPrefix(line, "dN/dS (w) for site classes"):
			if res.SiteClasses == nil {
				res.SiteClasses = &SiteClasses{}
			}
			scState = scExpect
			continue
		}

		if inParams {
			if trimmed == "" {
				inParams = false
				continue
			}
			for _, m := range parRe.FindAllStringSubmatch(line, -1) {
				v, err := strconv.ParseFloat(m[2], 64)
				if err != nil {
					return nil, &ParseError{File: file, Line: lineNo, Msg: "malformed parameter value: " + m[2]}
				}
				switch m[1] {
				case "p0":
					res.P0 = v
				case "p":
					res.P = v
				case "q":
					res.Q = v
				case "w":
					res.W = v
				}
			}
			continue
		}

		if inBranchT {
			fields := strings.Fields(trimmed)
			if len(fields) == 0 {
				continue
			}
			if fields[0] == "branch" {
				continue
			}
			if !strings.Contains(fields[0], "..") {
				inBranchT = false
			} else {
				br, err := parseBranch(fields)
				if err != nil {
					return nil, &ParseError{File: file, Line: lineNo, Msg: err.Error()}
				}
				res.Branches = append(res.Branches, br)
				continue
			}
		}

		if scState != scOutside {
			if trimmed == "" {
				if scState == scRows {
					scState = scOutside
				}
				continue
			}
			if label, values, ok := splitOmegaRow(trimmed); ok {
				scState = scRows
				switch label {
				case "p", "proportion":
					res.SiteClasses.Proportions = values
				default:
					res.SiteClasses.Omegas = append(res.SiteClasses.Omegas,
						OmegaRow{Label: label, Values: values})
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{File: file, Line: lineNo, Msg: err.Error()}
	}

	if !haveLnL {
		return nil, &ParseError{File: file, Msg: "missing lnL line"}
	}

	return res, nil
}

// lastFloat returns the last whitespace-separated float of a line.
// It is only used for optional estimates; required fields have strict
// parsing.
func lastFloat(line string) float64 {
	fields := strings.Fields(line)
	for i := len(fields) - 1; i >= 0; i-- {
		if v, err := strconv.ParseFloat(fields[i], 64); err == nil {
			return v
		}
	}
	return 0
}

// floats parses all whitespace-separated floats of a string.
func floats(s string) []float64 {
	var res []float64
	for _, f := range strings.Fields(s) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			continue
		}
		res = append(res, v)
	}
	return res
}

// splitOmegaRow splits a site-class table row into its leading label
// and trailing float values, e.g. "background w  0.05 1.00" or
// "p:   0.81105  0.13472".
func splitOmegaRow(line string) (label string, values []float64, ok bool) {
	fields := strings.Fields(line)
	i := len(fields)
	for i > 0 {
		if _, err := strconv.ParseFloat(fields[i-1], 64); err != nil {
			break
		}
		i--
	}
	if i == len(fields) || i == 0 {
		return "", nil, false
	}
	label = strings.TrimRight(strings.Join(fields[:i], " "), ":")
	for _, f := range fields[i:] {
		v, _ := strconv.ParseFloat(f, 64)
		values = append(values, v)
	}
	return label, values, true
}

// parseBranch parses one row of the dN & dS branch table.
func parseBranch(fields []string) (br Branch, err error) {
	if len(fields) < 9 {
		return br, fmt.Errorf("short branch row: %d fields", len(fields))
	}
	br.Branch = fields[0]
	vals := make([]float64, 8)
	for i := 0; i < 8; i++ {
		vals[i], err = strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return br, fmt.Errorf("malformed branch value: %s", fields[i+1])
		}
	}
	br.T, br.N, br.S, br.DNDS = vals[0], vals[1], vals[2], vals[3]
	br.DN, br.DS, br.NDN, br.SDS = vals[4], vals[5], vals[6], vals[7]
	return br, nil
}
