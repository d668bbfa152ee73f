package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidFolder is returned for folder names that are empty, contain
// separators or would resolve outside the portal directory.
var ErrInvalidFolder = errors.New("invalid folder name")

// FolderChecker confines caller-supplied folder names to one directory.
type FolderChecker struct {
	root string
}

// NewFolderChecker creates a checker rooted at root.
func NewFolderChecker(root string) *FolderChecker {
	return &FolderChecker{root: root}
}

// Resolve returns root/name when name is a single path element that,
// after resolving symlinks, still lives strictly inside root.
func (fc *FolderChecker) Resolve(name string) (string, error) {
	if fc.root == "" {
		return "", fmt.Errorf("%w: portal directory not configured", ErrInvalidFolder)
	}

	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "", trimmed == ".", trimmed == "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidFolder, name)
	case strings.ContainsAny(name, `/\:`+"\x00"):
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidFolder, name)
	case filepath.VolumeName(name) != "":
		return "", fmt.Errorf("%w: %q has a volume prefix", ErrInvalidFolder, name)
	}

	target := filepath.Join(fc.root, name)

	canonicalRoot, err := canonicalizePath(fc.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve portal directory: %w", err)
	}
	canonicalTarget, err := canonicalizePath(target)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", target, err)
	}

	// Symlinks inside the portal may point anywhere; only the resolved
	// location counts.
	if !strings.HasPrefix(canonicalTarget, canonicalRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the portal directory", ErrInvalidFolder, name)
	}

	return target, nil
}

// canonicalizePath converts path to an absolute path with symlinks
// resolved as far as the path exists.
func canonicalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	canonicalPath, err := resolveSymlinksWalkUp(absPath)
	if err != nil {
		return absPath, nil
	}
	return canonicalPath, nil
}

// resolveSymlinksWalkUp resolves symlinks on the longest existing prefix
// of path and re-appends the missing components.
func resolveSymlinksWalkUp(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(path)
	base := filepath.Base(path)
	if parent == path {
		return path, nil
	}

	resolvedParent, err := resolveSymlinksWalkUp(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, base), nil
}
