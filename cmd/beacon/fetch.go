package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"beacon-hq/beacon/pkg/fetch"
)

var fetchFlags struct {
	noCache    bool
	jsonOutput bool
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <key>",
	Short: "Fetch a metric through the fallback chain",
	Long: `Fetch one metric payload, walking the fallback chain as needed:
live backend, local cache, durable cache endpoint, static fallback table.

The output includes the provenance (which tier supplied the value) and a
freshness classification. When a lower tier answered, the live failure
is reported alongside the data.

Examples:
  # Fetch with the local cache preferred (default)
  beacon fetch stripe_mrr

  # Force a live fetch, bypassing the local cache
  beacon fetch stripe_mrr --no-cache

  # Machine-readable output
  beacon fetch stripe_mrr --json`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVar(&fetchFlags.noCache, "no-cache", false, "bypass the local cache")
	fetchCmd.Flags().BoolVar(&fetchFlags.jsonOutput, "json", false, "emit the result as JSON")
}

func runFetch(cmd *cobra.Command, args []string) error {
	key := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	p, err := buildPipeline(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer p.Close()

	res := p.orch.GetWithOptions(cmd.Context(), key, fetch.Options{
		PreferCache: !fetchFlags.noCache,
	})

	if fetchFlags.jsonOutput {
		return printResultJSON(res)
	}
	printResult(res)

	if res.Data == nil {
		return fmt.Errorf("%w: %s", fetch.ErrNoData, key)
	}
	return nil
}

// fetchOutput is the --json shape of a retrieval result.
type fetchOutput struct {
	RequestID  string          `json:"request_id"`
	Key        string          `json:"key"`
	Data       json.RawMessage `json:"data,omitempty"`
	Provenance string          `json:"provenance,omitempty"`
	Freshness  string          `json:"freshness"`
	Error      *fetchErrOutput `json:"error,omitempty"`
	Warning    *fetchErrOutput `json:"warning,omitempty"`
}

type fetchErrOutput struct {
	Kind        string   `json:"kind"`
	Message     string   `json:"message"`
	Endpoint    string   `json:"endpoint,omitempty"`
	Remediation []string `json:"remediation,omitempty"`
}

func toErrOutput(te *fetch.TypedError) *fetchErrOutput {
	if te == nil {
		return nil
	}
	return &fetchErrOutput{
		Kind:        string(te.Kind),
		Message:     te.Message,
		Endpoint:    te.Endpoint,
		Remediation: te.Remediation,
	}
}

func printResultJSON(res fetch.Result) error {
	out := fetchOutput{
		RequestID:  res.RequestID,
		Key:        res.Key,
		Provenance: string(res.Provenance),
		Freshness:  string(res.Freshness),
		Error:      toErrOutput(res.Err),
		Warning:    toErrOutput(res.Warning),
	}
	if res.Data != nil {
		out.Data = res.Data.Raw
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if res.Data == nil {
		return fmt.Errorf("%w: %s", fetch.ErrNoData, res.Key)
	}
	return nil
}

func printResult(res fetch.Result) {
	if res.Data != nil {
		fmt.Printf("%s\n", res.Data.Raw)
		fmt.Printf("provenance: %s\n", res.Provenance)
		fmt.Printf("freshness:  %s\n", res.Freshness)
	}

	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "error (%s): %s\n", res.Err.Kind, res.Err.Message)
		printRemediation(res.Err)
	}
	if res.Warning != nil {
		fmt.Fprintf(os.Stderr, "warning (%s): %s\n", res.Warning.Kind, res.Warning.Message)
	}
}

func printRemediation(te *fetch.TypedError) {
	if len(te.Remediation) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "remediation:")
	for i, step := range te.Remediation {
		fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, step)
	}
}
