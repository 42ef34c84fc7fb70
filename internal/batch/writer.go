package batch

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/segmentio/parquet-go"
	"github.com/spf13/afero"
)

// WriteOutputs writes rows in the format implied by the path extension
func WriteOutputs(fs afero.Fs, path string, rows []Output, includeText bool) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	switch DetectFileFormat(path) {
	case FormatJSON:
		err = writeJSONLines(file, rows)
	case FormatParquet:
		err = writeParquet(file, rows)
	default:
		err = writeCSV(file, rows, includeText)
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeCSV(w io.Writer, rows []Output, includeText bool) error {
	cw := csv.NewWriter(w)

	header := []string{"id", "anonymized_text", "error_kind", "error"}
	if includeText {
		header = []string{"id", "text", "anonymized_text", "error_kind", "error"}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{row.ID, row.AnonymizedText, row.ErrorKind, row.Error}
		if includeText {
			record = []string{row.ID, row.Text, row.AnonymizedText, row.ErrorKind, row.Error}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSONLines(w io.Writer, rows []Output) error {
	bw := bufio.NewWriter(w)
	encoder := json.NewEncoder(bw)
	for _, row := range rows {
		if err := encoder.Encode(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeParquet(w io.Writer, rows []Output) error {
	writer := parquet.NewWriter(w, parquet.SchemaOf(new(Output)))
	for i := range rows {
		if err := writer.Write(&rows[i]); err != nil {
			return err
		}
	}
	return writer.Close()
}
