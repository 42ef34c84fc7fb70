// Redactor sends text to an anonymization service and returns the
// anonymized text.
//
// Usage:
//
//	redactor anonymize --text "John Smith lives in Boston"
//	redactor anonymize --file notes.txt --disable dates --copy
//	redactor batch records.csv anonymized.parquet
//	redactor serve --port 8080        # workspace server and web form
//	redactor history                  # recent submissions
package main

import (
	"os"

	"github.com/raaihank/redactor/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
