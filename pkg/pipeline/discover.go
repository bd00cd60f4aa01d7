package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	ignore "github.com/sabhiram/go-gitignore"

	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/extract"
)

// SkipDirs are never descended into during discovery.
var SkipDirs = []string{".git", "node_modules", "vendor"}

// Discover walks root and returns the manifests reg can extract, sorted.
// Directories in [SkipDirs] and paths matched by root's .gitignore are
// skipped.
func Discover(root string, reg *extract.Registry) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "project root %s", root)
		}
		return nil, errs.Wrap(errs.ErrCodeReadFailed, err, "project root %s", root)
	}
	if !info.IsDir() {
		return nil, errs.New(errs.ErrCodeInvalidPath, "project root %s is not a directory", root)
	}

	var gi *ignore.GitIgnore
	if _, err := os.Stat(filepath.Join(root, ".gitignore")); err == nil {
		gi, err = ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeReadFailed, err, "read .gitignore")
		}
	}

	var found []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped.
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if slices.Contains(SkipDirs, d.Name()) || (gi != nil && gi.MatchesPath(rel+"/")) {
				return fs.SkipDir
			}
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if reg.Supports(d.Name()) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeReadFailed, err, "walk %s", root)
	}
	slices.Sort(found)
	return found, nil
}
