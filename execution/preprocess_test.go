package execution

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/testwise/runcore/lib"
	"github.com/testwise/runcore/lib/fsext"
)

type fakeFetcher struct {
	contents map[string]string
	err      error
	calls    []string
}

func (f *fakeFetcher) FetchFileContent(_ context.Context, serverPath string) (string, error) {
	f.calls = append(f.calls, serverPath)
	if f.err != nil {
		return "", f.err
	}
	return f.contents[serverPath], nil
}

func uploadAction(data lib.FileUploadData) lib.Action {
	return lib.Action{
		Type:  lib.ActionUpload,
		Datas: []lib.ActionData{{FileUpload: &data}},
	}
}

func TestPreprocessFilesNoUploads(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()

	actions := []lib.Action{{Type: lib.ActionNavigate}, {Type: lib.ActionClick}}
	files, temps, err := PreprocessFiles(context.Background(), fs, &fakeFetcher{}, actions, "/sandbox")
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Empty(t, temps)
	assert.False(t, fsext.Exists(fs, "/sandbox/uploads"))
}

func TestPreprocessFilesInlineContent(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()

	actions := []lib.Action{uploadAction(lib.FileUploadData{
		ID:       null.IntFrom(7),
		FileName: "report.pdf",
		Content:  null.StringFrom(base64.StdEncoding.EncodeToString([]byte("pdf bytes"))),
	})}
	fetcher := &fakeFetcher{}
	files, temps, err := PreprocessFiles(context.Background(), fs, fetcher, actions, "/sandbox")
	require.NoError(t, err)
	require.Len(t, temps, 1)
	assert.Empty(t, fetcher.calls)

	path, ok := files["7"]
	require.True(t, ok)
	assert.Equal(t, temps[0], path)

	got, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(got))
}

func TestPreprocessFilesFetchesServerPath(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()

	fetcher := &fakeFetcher{contents: map[string]string{
		"files/avatar.png": base64.StdEncoding.EncodeToString([]byte("png bytes")),
	}}
	actions := []lib.Action{uploadAction(lib.FileUploadData{
		FileName:   "avatar.png",
		ServerPath: null.StringFrom("files/avatar.png"),
	})}
	files, _, err := PreprocessFiles(context.Background(), fs, fetcher, actions, "/sandbox")
	require.NoError(t, err)
	assert.Equal(t, []string{"files/avatar.png"}, fetcher.calls)

	got, err := afero.ReadFile(fs, files["files/avatar.png"])
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(got))
}

func TestPreprocessFilesFetchFailureLeavesNothing(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()

	actions := []lib.Action{
		uploadAction(lib.FileUploadData{
			FileName: "ok.txt",
			Content:  null.StringFrom(base64.StdEncoding.EncodeToString([]byte("fine"))),
		}),
		uploadAction(lib.FileUploadData{
			FileName:   "gone.txt",
			ServerPath: null.StringFrom("files/gone.txt"),
		}),
	}
	fetcher := &fakeFetcher{err: errors.New("storage offline")}
	files, temps, err := PreprocessFiles(context.Background(), fs, fetcher, actions, "/sandbox")
	require.Error(t, err)
	assert.Nil(t, files)
	assert.Nil(t, temps)

	left, err := fsext.FindFiles(fs, "/sandbox", ".txt")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestPreprocessFilesRejectsBadBase64(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()

	actions := []lib.Action{uploadAction(lib.FileUploadData{
		FileName: "junk.bin",
		Content:  null.StringFrom("%%% not base64 %%%"),
	})}
	_, _, err := PreprocessFiles(context.Background(), fs, &fakeFetcher{}, actions, "/sandbox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding upload")
}

func TestPreprocessFilesRejectsEmptyPayload(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()

	actions := []lib.Action{uploadAction(lib.FileUploadData{FileName: "empty.txt"})}
	_, _, err := PreprocessFiles(context.Background(), fs, &fakeFetcher{}, actions, "/sandbox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither inline content nor a server path")
}

func TestSafeFileName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "report-v2.pdf", safeFileName("report-v2.pdf"))
	assert.Equal(t, "passwd", safeFileName("../../etc/passwd"))
	assert.Equal(t, "sp_ced_out.txt", safeFileName("sp ced*out.txt"))
	assert.Equal(t, "file", safeFileName(""))
}
