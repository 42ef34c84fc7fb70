package batch

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/segmentio/parquet-go"
	"github.com/spf13/afero"
)

// ReadRecords loads every record of a CSV, JSON or Parquet file. Records
// without an id get their 1-based position.
func ReadRecords(fs afero.Fs, path string) ([]Record, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	var records []Record
	switch format := DetectFileFormat(path); format {
	case FormatCSV:
		records, err = readCSV(file)
	case FormatJSON:
		records, err = readJSON(file)
	case FormatParquet:
		records, err = readParquet(file)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", format)
	}
	if err != nil {
		return nil, err
	}

	for i := range records {
		if records[i].ID == "" {
			records[i].ID = strconv.Itoa(i + 1)
		}
	}
	return records, nil
}

func readCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	textCol, idCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "text":
			textCol = i
		case "id":
			idCol = i
		}
	}
	if textCol < 0 {
		return nil, fmt.Errorf("CSV header has no text column: %v", header)
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record %d: %w", len(records)+1, err)
		}

		var rec Record
		if textCol < len(row) {
			rec.Text = row[textCol]
		}
		if idCol >= 0 && idCol < len(row) {
			rec.ID = strings.TrimSpace(row[idCol])
		}
		records = append(records, rec)
	}
	return records, nil
}

// readJSON accepts a JSON array of records or one record per line
func readJSON(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON input: %w", err)
	}

	decoder := json.NewDecoder(br)
	if first == '[' {
		var records []Record
		if err := decoder.Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode JSON array: %w", err)
		}
		return records, nil
	}

	var records []Record
	for {
		var rec Record
		err := decoder.Decode(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode JSON record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsAny(b, " \t\r\n") {
			return b[0], nil
		}
		if _, err := br.ReadByte(); err != nil {
			return 0, err
		}
	}
}

func readParquet(file afero.File) ([]Record, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat Parquet file: %w", err)
	}
	// OpenFile reports a corrupt file as an error where NewReader would panic
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	reader := parquet.NewReader(pf)
	defer reader.Close()

	var records []Record
	for {
		var rec Record
		err := reader.Read(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
