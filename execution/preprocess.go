package execution

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/testwise/runcore/lib"
)

// FileFetcher retrieves a stored upload's content by server path, in base64
// transport form.
type FileFetcher interface {
	FetchFileContent(ctx context.Context, serverPath string) (string, error)
}

// PreprocessFiles resolves every upload action's file payload into a
// concrete temp file under sandboxDir/uploads, so the compiled script only
// ever references local paths. It returns the path map keyed by each
// upload's stable identifier and the list of written files for cleanup.
//
// A payload that cannot be obtained is fatal: a missing upload makes the
// generated script unrunnable, so nothing partial survives — files already
// written are removed before the error returns. With zero upload actions
// the filesystem is never touched.
func PreprocessFiles(
	ctx context.Context, fsys afero.Fs, fetcher FileFetcher, actions []lib.Action, sandboxDir string,
) (map[string]string, []string, error) {
	var uploads []*lib.FileUploadData
	for _, a := range actions {
		if a.Type != lib.ActionUpload {
			continue
		}
		for _, d := range a.Datas {
			if d.Kind() == lib.KindFileUpload {
				uploads = append(uploads, d.FileUpload)
			}
		}
	}

	files := map[string]string{}
	if len(uploads) == 0 {
		return files, nil, nil
	}

	uploadsDir := filepath.Join(sandboxDir, "uploads")
	if err := fsys.MkdirAll(uploadsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating uploads dir: %w", err)
	}

	var tempFiles []string
	fail := func(err error) (map[string]string, []string, error) {
		for _, p := range tempFiles {
			_ = fsys.Remove(p)
		}
		_ = fsys.RemoveAll(uploadsDir)
		return nil, nil, err
	}

	for i, u := range uploads {
		content, err := resolveContent(ctx, fetcher, u)
		if err != nil {
			return fail(err)
		}
		raw, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return fail(fmt.Errorf("decoding upload %q: %w", u.Key(), err))
		}

		path := filepath.Join(uploadsDir, fmt.Sprintf("upload_%d_%s", i+1, safeFileName(u.FileName)))
		if err := afero.WriteFile(fsys, path, raw, 0o644); err != nil {
			return fail(fmt.Errorf("writing upload %q: %w", u.Key(), err))
		}

		files[u.Key()] = path
		tempFiles = append(tempFiles, path)
	}
	return files, tempFiles, nil
}

func resolveContent(ctx context.Context, fetcher FileFetcher, u *lib.FileUploadData) (string, error) {
	if u.Content.Valid && u.Content.String != "" {
		return u.Content.String, nil
	}
	if u.ServerPath.Valid && u.ServerPath.String != "" {
		content, err := fetcher.FetchFileContent(ctx, u.ServerPath.String)
		if err != nil {
			return "", fmt.Errorf("fetching upload %q: %w", u.Key(), err)
		}
		return content, nil
	}
	return "", fmt.Errorf("upload %q has neither inline content nor a server path", u.Key())
}

func safeFileName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
