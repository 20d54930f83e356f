/*

Etetab parses the output of ETE3-evol (one directory per gene, one
sub-directory per fitted CodeML model) and produces a series of
summary tables: per-model-class CSVs, a likelihood-ratio test table, a
branch table and a table of positively selected sites.

The basic usage of etetab looks like this:

	etetab results/ tables/

You can restrict parsing to a subset of models:

	etetab -models M7 -models M8 results/ tables/

To see all the options run:

	etetab -h

*/
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/op/go-logging"
	bolt "go.etcd.io/bbolt"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/molevol/etetab/cache"
	"github.com/molevol/etetab/dist"
	"github.com/molevol/etetab/results"
	"github.com/molevol/etetab/sites"
	"github.com/molevol/etetab/summary"
)

// bebSignificance is the chi-squared level of the likelihood-ratio
// test supporting a model before its selected sites are reported.
const bebSignificance = 0.9

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("etetab")
var formatter = logging.MustStringFormatter(`%{message}`)

// command-line options
var (
	// application
	app = kingpin.New("etetab", "ETE3-evol output-to-table converter").Version(version)

	// input/output directories
	inputDir = app.Arg("input", "directory with ETE3-evol results").Required().ExistingDir()
	outDir   = app.Arg("outdir", "output directory for the csv tables").Required().String()

	// model selection and thresholds
	models    = app.Flag("models", "only parse the given models (repeatable)").Strings()
	threshold = app.Flag("threshold", "posterior probability threshold for selected sites").
		Default("0.99").Float64()

	// technical
	nThreads = app.Flag("nt", "number of parallel workers").Int()
	cacheF   = app.Flag("cache", "bolt database file for the parse cache").String()

	// input/output
	plotF    = app.Flag("plot", "write a p-value histogram plot (format from extension)").String()
	outLogF  = app.Flag("log", "write log to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
	jsonF = app.Flag("json", "write json run summary to a file").String()
)

// geneResult is what a worker delivers to the accumulating owner.
type geneResult struct {
	dir  string
	gene *results.Gene
	err  error
}

// cacheKey derives the cache key for one gene directory. The cached
// payload depends on the model filter, so the filter is part of the
// key; a filtered run must never serve its subset to an unfiltered
// one.
func cacheKey(dir string, only map[string]bool) string {
	key := filepath.Base(dir)
	if len(only) == 0 {
		return key
	}
	models := make([]string, 0, len(only))
	for m := range only {
		models = append(models, m)
	}
	sort.Strings(models)
	return key + "|" + strings.Join(models, ",")
}

// parseGenes reads all gene directories using nt parallel workers and
// merges completed results into a single summary table. Workers own
// no shared state; the table is only touched by this goroutine.
func parseGenes(dirs []string, only map[string]bool, nt int, c *cache.Cache) (*summary.Table, *RunSummary) {
	jobs := make(chan string, len(dirs))
	out := make(chan geneResult, nt)

	for i := 0; i < nt; i++ {
		go func() {
			for dir := range jobs {
				key := cacheKey(dir, only)
				gene := &results.Gene{}
				hit, err := c.Get(key, gene)
				if err != nil {
					log.Error("Cache error:", err)
				}
				if !hit {
					gene, err = results.ReadGene(dir, only)
					if err == nil {
						if err := c.Put(key, gene); err != nil {
							log.Error("Cache error:", err)
						}
					}
				}
				out <- geneResult{dir: dir, gene: gene, err: err}
			}
		}()
	}

	for _, dir := range dirs {
		jobs <- dir
	}
	close(jobs)

	table := summary.NewTable()
	run := &RunSummary{NGenes: len(dirs)}

	for range dirs {
		r := <-out
		if r.err != nil {
			// failures are isolated per gene; the batch continues
			log.Errorf("Skipping %s: %v", r.dir, r.err)
			table.AddError(filepath.Base(r.dir), r.err.Error())
			run.NFailed++
			continue
		}
		mergeGene(table, run, r.gene)
	}
	return table, run
}

// mergeGene appends one parsed gene to the summary table. Models of
// unknown class are recorded in the error report and skipped; the
// batch continues. Selected sites are only reported for models
// supported by a significant likelihood-ratio test.
func mergeGene(table *summary.Table, run *RunSummary, gene *results.Gene) {
	for _, model := range gene.ModelNames() {
		if err := table.Add(gene.Name, gene.Models[model]); err != nil {
			// a duplicate (gene, model) is a caller bug
			if errors.Is(err, summary.ErrDuplicateRecord) {
				log.Fatal(err)
			}
			log.Errorf("Skipping %s model %s: %v", gene.Name, model, err)
			table.AddError(gene.Name, err.Error())
		}
	}

	tests, skipped := gene.Tests()
	significant := make(map[string]bool)
	for _, test := range tests {
		table.AddLRT(gene.Name, test)
		run.NTests++
		if !test.NonConvergent &&
			test.Statistic >= dist.QuantileChi2(bebSignificance, float64(test.Df)) {
			significant[test.Alt] = true
		}
	}
	for _, s := range skipped {
		table.AddError(gene.Name,
			fmt.Sprintf("skipped comparison %s vs %s: %s", s.Null, s.Alt, s.Reason))
	}

	for _, model := range gene.ModelNames() {
		res := gene.Models[model]
		if len(res.BEB) > 0 && significant[model] {
			table.AddBEB(gene.Name, model, sites.Selected(res.BEB, *threshold))
		}
	}
}

func main() {
	startTime := time.Now()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	logging.SetLevel(level, "etetab")
	logging.SetLevel(level, "results")
	logging.SetLevel(level, "cache")

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	nt := *nThreads
	if nt <= 0 {
		nt = runtime.NumCPU()
	}
	log.Infof("Using workers: %d.", nt)

	var db *bolt.DB
	if *cacheF != "" {
		db, err = bolt.Open(*cacheF, 0666, nil)
		if err != nil {
			log.Fatal("Error opening cache database:", err)
		}
		defer db.Close()
	}
	c := cache.New(db)

	only := make(map[string]bool, len(*models))
	for _, m := range *models {
		only[m] = true
	}

	dirs, err := results.ListGeneDirs(*inputDir)
	if err != nil {
		log.Fatal(err)
	}
	if len(dirs) == 0 {
		log.Fatal("No gene directories found in the input directory")
	}
	log.Noticef("Parsing %d gene directories", len(dirs))

	table, run := parseGenes(dirs, only, nt, c)
	run.NRows = table.NRows()

	if err := table.WriteCSV(*outDir); err != nil {
		log.Fatal("Error writing tables:", err)
	}

	if *plotF != "" {
		if err := plotPValues(table, *plotF); err != nil {
			log.Error("Error writing p-value plot:", err)
		}
	}

	for _, e := range table.Errors() {
		log.Warningf("%s: %s", e.Gene, e.Msg)
	}
	if n := len(table.Errors()); n > 0 {
		log.Noticef("%d problem(s) recorded in errors.csv", n)
	}

	endTime := time.Now()
	deltaT := endTime.Sub(startTime)
	log.Noticef("Running time: %v", deltaT)

	run.Version = version
	run.CommandLine = os.Args
	run.NThreads = nt
	run.Time = deltaT.Seconds()

	// output summary in json format
	if *jsonF != "" {
		j, err := json.Marshal(run)
		if err != nil {
			log.Error(err)
		} else {
			log.Debug(string(j))
			f, err := os.Create(*jsonF)
			if err != nil {
				log.Error("Error creating json output file:", err)
			} else {
				f.Write(j)
				f.Close()
			}
		}
	}

	log.Notice("Finished")
}
