// Package fsext provides small helpers on top of afero used by the
// execution core: existence checks and extension-filtered file discovery
// inside a run's output directory.
package fsext

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Exists reports whether the path exists on the given filesystem.
func Exists(fsys afero.Fs, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}

// FindFiles walks dir and returns every regular file whose extension is one
// of exts (compared case-insensitively, dot included). A missing dir is not
// an error: the result is simply empty. Results are sorted so callers get a
// deterministic order.
func FindFiles(fsys afero.Fs, dir string, exts ...string) ([]string, error) {
	if !Exists(fsys, dir) {
		return nil, nil
	}

	wanted := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		wanted[strings.ToLower(e)] = struct{}{}
	}

	var found []string
	err := afero.Walk(fsys, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if _, ok := wanted[strings.ToLower(filepath.Ext(path))]; ok {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(found)
	return found, nil
}
