package codeml

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// BEB section markers in the rst file.
const (
	bebBranchSiteMarker = "Bayes Empirical Bayes"
	bebSiteMarker       = "(BEB)"
	bebSiteTableMarker  = "Prob(w>1)"
)

// ReadBEB parses per-site Bayes Empirical Bayes posteriors from a
// CodeML rst file. Branch-site models report one probability per site
// class; the positive-selection posterior is the sum of the 2a and 2b
// classes. Site models report Prob(w>1) directly. Gap positions are
// skipped. A missing BEB section yields an empty slice, not an error:
// CodeML omits the section when no sites are reported.
func ReadBEB(rd io.Reader, file, model string) ([]BEBSite, error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	if IsBranchSite(model) {
		return readBEBBranchSite(scanner, file)
	}
	return readBEBSite(scanner, file)
}

// readBEBBranchSite parses the branch-site BEB table:
//
//	Bayes Empirical Bayes (BEB) probabilities for 4 classes (class)
//	(amino acids refer to 1st sequence: ...)
//
//	   1 M   0.00325 0.00322 0.57993 0.41360 ( 3)  0.986
func readBEBBranchSite(scanner *bufio.Scanner, file string) ([]BEBSite, error) {
	var sites []BEBSite
	lineNo := 0
	inTable := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNo++
		if !inTable {
			if strings.HasPrefix(line, bebBranchSiteMarker) {
				inTable = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 || !isInt(fields[0]) {
			// header or trailer line inside the section
			if len(sites) > 0 {
				break
			}
			continue
		}
		if len(fields) < 6 {
			return nil, &ParseError{File: file, Line: lineNo, Msg: "short BEB row"}
		}
		if fields[1] == "-" {
			// alignment gap
			continue
		}
		pos, _ := strconv.Atoi(fields[0])
		p2a, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, &ParseError{File: file, Line: lineNo, Msg: "malformed BEB probability: " + fields[4]}
		}
		p2b, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, &ParseError{File: file, Line: lineNo, Msg: "malformed BEB probability: " + fields[5]}
		}
		sites = append(sites, BEBSite{
			Site:      pos,
			AminoAcid: fields[1],
			Prob:      p2a + p2b,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{File: file, Line: lineNo, Msg: err.Error()}
	}
	return sites, nil
}

// readBEBSite parses the site-model BEB table:
//
//	Positively selected sites (*: P>95%; **: P>99%)
//	(amino acids refer to 1st sequence: ...)
//
//	            Prob(w>1)     post mean +- SE for w
//
//	    12 L      0.953         2.543 +- 1.021
//	    45 K      0.997**       3.921 +- 0.889
func readBEBSite(scanner *bufio.Scanner, file string) ([]BEBSite, error) {
	var sites []BEBSite
	lineNo := 0
	sawBEB := false
	inTable := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNo++
		if !sawBEB {
			if strings.Contains(line, bebSiteMarker) {
				sawBEB = true
			}
			continue
		}
		if !inTable {
			if strings.Contains(line, bebSiteTableMarker) {
				inTable = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 || !isInt(fields[0]) {
			if len(sites) > 0 {
				break
			}
			continue
		}
		if len(fields) < 3 {
			return nil, &ParseError{File: file, Line: lineNo, Msg: "short BEB row"}
		}
		if fields[1] == "-" {
			continue
		}
		pos, _ := strconv.Atoi(fields[0])
		prob, err := strconv.ParseFloat(strings.TrimRight(fields[2], "*"), 64)
		if err != nil {
			return nil, &ParseError{File: file, Line: lineNo, Msg: "malformed BEB probability: " + fields[2]}
		}
		site := BEBSite{
			Site:      pos,
			AminoAcid: fields[1],
			Prob:      prob,
		}
		if len(fields) >= 4 {
			if w, err := strconv.ParseFloat(fields[3], 64); err == nil {
				site.MeanOmega = w
			}
		}
		sites = append(sites, site)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{File: file, Line: lineNo, Msg: err.Error()}
	}
	return sites, nil
}

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
