package batch

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/raaihank/redactor/internal/options"
)

// Record is one input row
type Record struct {
	ID   string `parquet:"id" json:"id"`
	Text string `parquet:"text" json:"text"`
}

// Output is one processed row. Text is only filled when the input text
// is included in the output.
type Output struct {
	ID             string `parquet:"id" json:"id"`
	Text           string `parquet:"text" json:"text,omitempty"`
	AnonymizedText string `parquet:"anonymized_text" json:"anonymized_text"`
	ErrorKind      string `parquet:"error_kind" json:"error_kind,omitempty"`
	Error          string `parquet:"error" json:"error,omitempty"`
}

// Result summarizes one run
type Result struct {
	Input        string        `json:"input"`
	Output       string        `json:"output"`
	TotalRecords int64         `json:"total_records"`
	Succeeded    int64         `json:"succeeded"`
	Failed       int64         `json:"failed"`
	Duration     time.Duration `json:"duration"`
	// Errors counts failures by message
	Errors map[string]int `json:"errors,omitempty"`
}

// Config contains batch pipeline configuration
type Config struct {
	Workers        int         `yaml:"workers" mapstructure:"workers"`
	RequestsPerSec float64     `yaml:"requests_per_sec" mapstructure:"requests_per_sec"` // <= 0 is unlimited
	Burst          int         `yaml:"burst" mapstructure:"burst"`
	IncludeText    bool        `yaml:"include_text" mapstructure:"include_text"`
	Options        options.Set `yaml:"-" mapstructure:"-"`
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension. Unknown
// extensions are treated as CSV.
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".parquet":
		return FormatParquet
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	default:
		return FormatCSV
	}
}
