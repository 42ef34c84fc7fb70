// Package export implements the actions available on a successful result:
// copying it to the clipboard and saving it as a text file.
package export

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/atotto/clipboard"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// FileName is the name of the downloaded result file
	FileName = "anonymized-text.txt"
	// ContentType is the MIME type of the downloaded result
	ContentType = "text/plain"
)

// ErrCopyFailed is wrapped by every clipboard failure
var ErrCopyFailed = errors.New("failed to copy text to clipboard")

// Clipboard writes text to a clipboard
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard is the OS clipboard
type SystemClipboard struct{}

// WriteAll implements Clipboard
func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errors.New("clipboard is not supported on this platform")
	}
	return clipboard.WriteAll(text)
}

// Actions performs copy and download of a result string
type Actions struct {
	clipboard Clipboard
	fs        afero.Fs
	dir       string
	logger    *zap.Logger
}

// New creates Actions that save downloads into dir on fs
func New(cb Clipboard, fs afero.Fs, dir string, logger *zap.Logger) *Actions {
	if dir == "" {
		dir = "."
	}
	return &Actions{
		clipboard: cb,
		fs:        fs,
		dir:       dir,
		logger:    logger,
	}
}

// Copy puts text on the clipboard. There is no retry.
func (a *Actions) Copy(text string) error {
	if err := a.clipboard.WriteAll(text); err != nil {
		a.logger.Warn("Clipboard write rejected", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrCopyFailed, err)
	}
	a.logger.Debug("Result copied to clipboard", zap.Int("length", len(text)))
	return nil
}

// Download writes text to FileName in the download directory and returns
// the target path. Failures are logged, not returned.
func (a *Actions) Download(text string) string {
	path := filepath.Join(a.dir, FileName)

	if err := a.fs.MkdirAll(a.dir, 0o755); err != nil {
		a.logger.Warn("Failed to prepare download directory", zap.String("dir", a.dir), zap.Error(err))
		return path
	}
	if err := afero.WriteFile(a.fs, path, []byte(text), 0o644); err != nil {
		a.logger.Warn("Failed to write download", zap.String("path", path), zap.Error(err))
		return path
	}

	a.logger.Info("Result downloaded", zap.String("path", path), zap.Int("length", len(text)))
	return path
}

// ServeDownload writes text as an attachment named FileName
func ServeDownload(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", ContentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(text)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}
