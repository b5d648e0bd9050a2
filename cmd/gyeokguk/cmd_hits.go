package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"gyeokguk/internal/classify"
	"gyeokguk/internal/facts"
)

var hitsFlags struct {
	chartPath string
	batchDir  string
	parallel  int
}

var hitsCmd = &cobra.Command{
	Use:   "hits [chart.json]",
	Short: "Score the quality of every detection on one chart",
	Long: `Hits reads a chart fact-base JSON file, expands every rule emission
into detections, attaches quality fields (penalty parts, weight, label,
active flag) to each, and prints the full result as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHits,
}

func init() {
	f := hitsCmd.Flags()
	f.StringVarP(&hitsFlags.chartPath, "file", "f", "", "Chart fact-base JSON path")
	f.StringVar(&hitsFlags.batchDir, "batch", "", "Directory of chart JSON files to score in parallel")
	f.IntVar(&hitsFlags.parallel, "parallel", runtime.NumCPU(), "Batch worker count")
}

func runHits(cmd *cobra.Command, args []string) error {
	p, err := loadPolicy()
	if err != nil {
		return err
	}
	engine := classify.NewHitEngine(p, nil)

	if hitsFlags.batchDir != "" {
		return runBatch(cmd, hitsFlags.batchDir, hitsFlags.parallel,
			func(chart *facts.Chart) any { return engine.Run(chart) })
	}

	path := hitsFlags.chartPath
	if path == "" && len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("chart path is required\n\nUsage: gyeokguk hits <chart.json>")
	}
	chart, err := loadChart(path)
	if err != nil {
		return err
	}
	return printJSON(cmd, engine.Run(chart))
}
