package storage

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// StripBucket removes a leading bucket (or root) component from p, returning
// a bucket-relative path with forward slashes. Paths that do not carry the
// bucket prefix are returned unchanged.
func StripBucket(p, bucket string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(p, "/")
	bucket = strings.TrimSuffix(filepath.ToSlash(bucket), "/")
	bucket = strings.TrimPrefix(bucket, "/")

	if bucket == "" {
		return p
	}
	if p == bucket {
		return ""
	}
	if rest, ok := strings.CutPrefix(p, bucket+"/"); ok {
		return rest
	}
	return p
}

// RelativePath returns p relative to base. When p does not live under base
// but base appears somewhere inside p, everything up to and including base is
// dropped; otherwise p is returned as-is. This mirrors how object names come
// back from listings with varying prefixes.
func RelativePath(p, base string) string {
	p = filepath.ToSlash(p)
	base = strings.TrimSuffix(filepath.ToSlash(base), "/")

	if base == "" || base == "." {
		return p
	}
	if rest, ok := strings.CutPrefix(p, base+"/"); ok {
		return rest
	}
	// Base may occur mid-path, e.g. "/tmp/work/model/weights.bin" with base
	// "model". Split on the last path element of base.
	name := path.Base(base)
	parts := strings.Split(p, "/")
	for i, part := range parts {
		if part == name {
			return strings.Join(parts[i+1:], "/")
		}
	}
	return p
}

// Suffix returns the file extension of p without the leading dot.
func Suffix(p string) string {
	return strings.TrimPrefix(path.Ext(p), ".")
}

// ListLocalFiles walks root and returns every regular file under it, sorted.
func ListLocalFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
