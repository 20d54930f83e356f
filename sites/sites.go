// Package sites reports sites under positive selection.
package sites

import (
	"github.com/molevol/etetab/codeml"
)

// DefaultThreshold is the posterior probability above which a site is
// reported as positively selected.
const DefaultThreshold = 0.99

// Selected returns the sites whose positive-selection posterior is at
// least threshold, preserving site order. An empty result is a valid
// outcome.
func Selected(beb []codeml.BEBSite, threshold float64) []codeml.BEBSite {
	var res []codeml.BEBSite
	for _, s := range beb {
		if s.Prob >= threshold {
			res = append(res, s)
		}
	}
	return res
}
