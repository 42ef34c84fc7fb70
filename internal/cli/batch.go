package cli

import (
	"encoding/json"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/raaihank/redactor/internal/batch"
)

var (
	flagWorkers     int
	flagRPS         float64
	flagIncludeText bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <input> <output>",
	Short: "Anonymize every record of a CSV, JSON lines or Parquet dataset",
	Long: `Reads records with a text column (and optional id) from <input> and writes
id, anonymized_text and error per record to <output>. Formats follow the file
extensions: .csv, .json/.jsonl/.ndjson or .parquet.`,
	Args: usageArgs(cobra.ExactArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := optionsFromFlags()
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		cfg := batch.Config{
			Workers:        a.cfg.Batch.Workers,
			RequestsPerSec: a.cfg.Batch.RequestsPerSec,
			Burst:          a.cfg.Batch.Burst,
			IncludeText:    a.cfg.Batch.IncludeText || flagIncludeText,
			Options:        set,
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers = flagWorkers
		}
		if cmd.Flags().Changed("rps") {
			cfg.RequestsPerSec = flagRPS
		}

		pipeline := batch.NewPipeline(a.anonymizer, cfg, afero.NewOsFs(), a.log.Logger)
		if r := a.recorder(); r != nil {
			pipeline.WithRecorder(r)
		}

		result, err := pipeline.ProcessFile(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		if result.Failed > 0 {
			exitCode = ExitFailed
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVarP(&flagWorkers, "workers", "w", 0, "Concurrent workers (overrides batch.workers)")
	batchCmd.Flags().Float64Var(&flagRPS, "rps", 0, "Service requests per second, 0 for unlimited (overrides batch.requests_per_sec)")
	batchCmd.Flags().BoolVar(&flagIncludeText, "include-text", false, "Include the original text in the output")
	addOptionFlags(batchCmd)
}
