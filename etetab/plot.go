package main

import (
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/molevol/etetab/summary"
)

// plotPValues writes a histogram of the LRT p-values. Non-convergent
// tests have no p-value and are left out.
func plotPValues(table *summary.Table, fn string) error {
	var vals plotter.Values
	for _, row := range table.LRTs() {
		if math.IsNaN(row.Test.PValue) {
			continue
		}
		vals = append(vals, row.Test.PValue)
	}
	if len(vals) == 0 {
		log.Warning("No p-values to plot")
		return nil
	}

	p := plot.New()
	p.Title.Text = "LRT p-values"
	p.X.Label.Text = "p-value"

	h, err := plotter.NewHist(vals, 20)
	if err != nil {
		return err
	}
	p.Add(h)

	return p.Save(4*vg.Inch, 4*vg.Inch, fn)
}
