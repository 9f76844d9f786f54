package fswalk

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Options controls a Walk.
type Options struct {
	// Ignore matches paths that should be excluded from the backup.
	Ignore *IgnoreMatcher
	// ExcludeCacheTagDirectories, when true, makes Walk treat any
	// directory containing a valid CACHEDIR.TAG as a cache directory:
	// the tag file itself is still backed up but the rest of the
	// directory's contents are skipped.
	ExcludeCacheTagDirectories bool
	// PreviousCacheTags holds the relative paths (root-relative,
	// forward slashes) of CACHEDIR.TAG files that were already present
	// in the previous generation. Any tag found during this walk that
	// is not in this set is reported as newly discovered.
	PreviousCacheTags map[string]bool
}

// Result is the outcome of walking one backup root.
type Result struct {
	Entries []Entry
	// Warnings holds per-file errors that did not abort the walk.
	Warnings []Warning
	// NewCacheTags holds the root-relative paths of CACHEDIR.TAG files
	// discovered during this walk that were not present in the
	// previous generation. A non-empty NewCacheTags means the backup
	// completed but the caller must exit non-zero and print the paths.
	NewCacheTags []string
}

// Walk traverses root, applying opts.Ignore and CACHEDIR.TAG policy,
// and returns every entry that should be captured in the generation's
// index. It never aborts on a single unreadable file: such failures
// are collected as Warnings instead.
func Walk(root string, opts Options) (*Result, error) {
	root = filepath.Clean(root)
	info, err := os.Lstat(root)
	if err != nil {
		return nil, fmt.Errorf("stat backup root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("backup root %s is not a directory", root)
	}

	res := &Result{}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			res.Warnings = append(res.Warnings, Warning{Path: path, Err: walkErr})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("computing relative path for %s: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)

		if relPath != "." && opts.Ignore != nil && opts.Ignore.Match(relPath) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{Path: path, Err: err})
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if relPath != "." {
				res.Entries = append(res.Entries, Entry{AbsPath: path, RelPath: relPath, Info: fi})
			}

			if opts.ExcludeCacheTagDirectories && hasCacheDirTag(path) {
				tagRel := filepath.ToSlash(filepath.Join(relPath, cacheDirTagFile))
				tagAbs := filepath.Join(path, cacheDirTagFile)
				tagInfo, err := os.Lstat(tagAbs)
				if err != nil {
					res.Warnings = append(res.Warnings, Warning{Path: tagAbs, Err: err})
					return fs.SkipDir
				}
				res.Entries = append(res.Entries, Entry{AbsPath: tagAbs, RelPath: tagRel, Info: tagInfo})
				if !opts.PreviousCacheTags[tagRel] {
					res.NewCacheTags = append(res.NewCacheTags, tagRel)
				}
				return fs.SkipDir
			}
			return nil
		}

		res.Entries = append(res.Entries, Entry{AbsPath: path, RelPath: relPath, Info: fi})
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipDir) {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	return res, nil
}
