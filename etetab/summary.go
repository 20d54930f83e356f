package main

// RunSummary is storing run summary information.
type RunSummary struct {
	// Version stores etetab version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// NThreads is the number of parallel workers used.
	NThreads int `json:"nThreads"`
	// NGenes is the number of gene directories found.
	NGenes int `json:"nGenes"`
	// NFailed is the number of genes excluded because of parse failures.
	NFailed int `json:"nFailed"`
	// NTests is the number of likelihood-ratio tests performed.
	NTests int `json:"nTests"`
	// NRows is the number of summary rows written.
	NRows int `json:"nRows"`
	// Time is the computations time in seconds.
	Time float64 `json:"time"`
}
