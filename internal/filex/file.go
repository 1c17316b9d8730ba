// Package filex keeps the local copy of static assets next to the remote
// one.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureSubdDir creates dirName under base and returns its path.
func EnsureSubdDir(base, dirName string) (string, error) {
	dir := filepath.Join(base, dirName)

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// WriteFile stores data at root/name, creating parent directories. name is
// a slash-separated storage name and must stay inside root. The file is
// written to a temporary sibling first and renamed into place.
func WriteFile(root, name string, data []byte) (string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(strings.ReplaceAll(name, `\`, "/"), "/"))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("name %q escapes %s", name, root)
	}

	dst := filepath.Join(root, rel)
	dir, err := EnsureSubdDir(root, filepath.Dir(rel))
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("rename to %s: %w", dst, err)
	}

	return dst, nil
}
