package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gyeokguk/internal/classify"
	"gyeokguk/internal/facts"
)

var classifyFlags struct {
	chartPath string
	batchDir  string
	parallel  int
}

var classifyCmd = &cobra.Command{
	Use:   "classify [chart.json]",
	Short: "Rank candidate patterns for one chart (or a directory of charts)",
	Long: `Classify reads a chart fact-base JSON file, runs pattern selection
with competition resolution, and prints the ranked result as JSON.

With --batch, every *.json file in the directory is classified in
parallel; results are printed as one JSON object keyed by file name.
Independent charts share nothing but the compiled policy, so batch
throughput scales with workers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.StringVarP(&classifyFlags.chartPath, "file", "f", "", "Chart fact-base JSON path")
	f.StringVar(&classifyFlags.batchDir, "batch", "", "Directory of chart JSON files to classify in parallel")
	f.IntVar(&classifyFlags.parallel, "parallel", runtime.NumCPU(), "Batch worker count")
}

func runClassify(cmd *cobra.Command, args []string) error {
	p, err := loadPolicy()
	if err != nil {
		return err
	}
	engine := classify.NewPatternEngine(p, nil)

	if classifyFlags.batchDir != "" {
		return runBatch(cmd, classifyFlags.batchDir, classifyFlags.parallel,
			func(chart *facts.Chart) any { return engine.Run(chart) })
	}

	path := classifyFlags.chartPath
	if path == "" && len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("chart path is required\n\nUsage: gyeokguk classify <chart.json>")
	}
	chart, err := loadChart(path)
	if err != nil {
		return err
	}
	return printJSON(cmd, engine.Run(chart))
}

// runBatch classifies every *.json chart in dir with an errgroup worker
// pool and prints one object keyed by file name.
func runBatch(cmd *cobra.Command, dir string, parallel int, run func(*facts.Chart) any) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("scan batch dir: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no *.json charts in %s", dir)
	}
	sort.Strings(paths)

	results := make([]any, len(paths))
	g := new(errgroup.Group)
	if parallel < 1 {
		parallel = 1
	}
	g.SetLimit(parallel)
	for i, path := range paths {
		g.Go(func() error {
			chart, err := loadChart(path)
			if err != nil {
				return err
			}
			results[i] = run(chart)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := make(map[string]any, len(paths))
	for i, path := range paths {
		out[filepath.Base(path)] = results[i]
	}
	return printJSON(cmd, out)
}

func loadChart(path string) (*facts.Chart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chart: %w", err)
	}
	var chart facts.Chart
	if err := json.Unmarshal(data, &chart); err != nil {
		return nil, fmt.Errorf("parse chart %s: %w", path, err)
	}
	return &chart, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
