// gyeokguk classifies four-pillar chart snapshots: pattern selection with
// competition resolution, and per-detection quality scoring.
//
// Usage:
//
//	gyeokguk classify -f chart.json [--policy policy.yaml]
//	gyeokguk classify --batch charts/ [--policy policy.yaml]
//	gyeokguk hits -f chart.json [--policy policy.yaml]
//	gyeokguk serve [--policy policy.yaml]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gyeokguk/internal/logging"
	"gyeokguk/internal/policy"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	policyPath string
	logLevel   string
	logFormat  string
}

var rootCmd = &cobra.Command{
	Use:   "gyeokguk",
	Short: "Deterministic pattern and hit-quality classification for four-pillar charts",
	Long: "Gyeokguk scores one subject's pre-derived chart fact base:\n" +
		"which candidate pattern group dominates (competition-resolved,\n" +
		"magnitude-conserving), and how much each detected hit is weakened\n" +
		"by adverse conditions.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(*cobra.Command, []string) {
		logging.Init(logging.ParseLevel(rootFlags.logLevel), rootFlags.logFormat)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.policyPath, "policy", "", "Policy YAML path (default: built-in policy)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(hitsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

// loadPolicy compiles the configured policy, falling back to the built-in
// one when no path is given.
func loadPolicy() (*policy.Policy, error) {
	cfg := policy.Default()
	if rootFlags.policyPath != "" {
		loaded, err := policy.Load(rootFlags.policyPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	return policy.Build(cfg), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
