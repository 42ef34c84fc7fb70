package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/raaihank/redactor/internal/export"
	"github.com/raaihank/redactor/internal/options"
	"github.com/raaihank/redactor/internal/workspace"
)

var (
	flagText        string
	flagFile        string
	flagDisable     []string
	flagPattern     string
	flagReplacement string
	flagCopy        bool
	flagDownload    bool
	flagJSON        bool
)

// clipboard is swapped out in tests
var clipboard export.Clipboard = export.SystemClipboard{}

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize",
	Short: "Anonymize text from --text, --file or stdin",
	Example: `  redactor anonymize --text "John Smith lives in Boston"
  redactor anonymize --file notes.txt --disable dates,urls --copy
  echo "call 555-0100" | redactor anonymize --pattern '\d{3}-\d{4}' --replacement '[NUM]'`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runAnonymize,
}

func runAnonymize(cmd *cobra.Command, args []string) error {
	set, err := optionsFromFlags()
	if err != nil {
		return err
	}

	text, err := readInput(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	opts := []workspace.Option{
		workspace.WithLogger(a.log.WithComponent("workspace").Logger),
		workspace.WithOptions(set),
	}
	if r := a.recorder(); r != nil {
		opts = append(opts, workspace.WithRecorder(r))
	}
	ws := workspace.New(a.anonymizer, opts...)
	defer ws.Close()

	ws.SetText(text)
	state, err := ws.Submit(cmd.Context())
	if err != nil {
		return err
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(state); err != nil {
			return err
		}
	}

	if state.Status != workspace.StatusSucceeded {
		if !flagJSON {
			fmt.Fprintln(errOut, state.Error)
		}
		exitCode = ExitFailed
		return nil
	}

	if !flagJSON {
		fmt.Fprintln(out, state.Result)
	}

	actions := export.New(clipboard, afero.NewOsFs(), a.cfg.Export.DownloadDir, a.log.WithComponent("export").Logger)
	if flagCopy {
		if err := actions.Copy(state.Result); err != nil {
			fmt.Fprintln(errOut, err)
		} else {
			fmt.Fprintln(errOut, "Copied!")
		}
	}
	if flagDownload {
		fmt.Fprintf(errOut, "Saved %s\n", actions.Download(state.Result))
	}
	return nil
}

func optionsFromFlags() (options.Set, error) {
	set, err := options.Default().WithDisabled(flagDisable)
	if err != nil {
		return set, usageErrorf("%w (valid categories: %v)", err, options.Categories())
	}
	if flagPattern != "" {
		set.CustomPattern = flagPattern
	}
	if flagReplacement != "" {
		set.CustomReplacement = flagReplacement
	}
	return set, nil
}

func readInput(cmd *cobra.Command) (string, error) {
	switch {
	case flagText != "" && flagFile != "":
		return "", usageErrorf("--text and --file are mutually exclusive")
	case flagText != "":
		return flagText, nil
	case flagFile != "":
		data, err := afero.ReadFile(afero.NewOsFs(), flagFile)
		if err != nil {
			return "", usageErrorf("failed to read %s: %w", flagFile, err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
}

func addOptionFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&flagDisable, "disable", nil, "Categories to leave untouched (comma separated)")
	cmd.Flags().StringVar(&flagPattern, "pattern", "", "Custom regular expression to redact")
	cmd.Flags().StringVar(&flagReplacement, "replacement", "", "Replacement token for --pattern matches (default [CUSTOM])")
}

func init() {
	anonymizeCmd.Flags().StringVarP(&flagText, "text", "t", "", "Text to anonymize")
	anonymizeCmd.Flags().StringVarP(&flagFile, "file", "f", "", "Read text from file")
	anonymizeCmd.Flags().BoolVar(&flagCopy, "copy", false, "Copy the result to the clipboard")
	anonymizeCmd.Flags().BoolVar(&flagDownload, "download", false, "Save the result as "+export.FileName)
	anonymizeCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the full workspace state as JSON")
	addOptionFlags(anonymizeCmd)
}
