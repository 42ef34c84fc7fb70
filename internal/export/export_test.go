package export

import (
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClipboard struct {
	text string
	err  error
}

func (c *fakeClipboard) WriteAll(text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

func TestCopy(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		cb := &fakeClipboard{}
		a := New(cb, afero.NewMemMapFs(), "out", zap.NewNop())

		require.NoError(t, a.Copy("My name is [NAME]"))
		assert.Equal(t, "My name is [NAME]", cb.text)
	})

	t.Run("rejected", func(t *testing.T) {
		cb := &fakeClipboard{err: errors.New("permission denied")}
		a := New(cb, afero.NewMemMapFs(), "out", zap.NewNop())

		err := a.Copy("x")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCopyFailed)
		assert.Contains(t, err.Error(), "permission denied")
	})
}

func TestDownload(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := New(&fakeClipboard{}, fs, filepath.Join("exports", "today"), zap.NewNop())

	path := a.Download("line one\nline [EMAIL]\n")
	assert.Equal(t, filepath.Join("exports", "today", "anonymized-text.txt"), path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline [EMAIL]\n", string(data))

	a.Download("second")
	data, err = afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestDownload_FailureIsSilent(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	a := New(&fakeClipboard{}, fs, "out", zap.NewNop())

	path := a.Download("text")
	assert.Equal(t, filepath.Join("out", FileName), path)
}

func TestServeDownload(t *testing.T) {
	rec := httptest.NewRecorder()
	ServeDownload(rec, "[NAME] lives in [LOCATION]")

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="anonymized-text.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "[NAME] lives in [LOCATION]", rec.Body.String())
}
