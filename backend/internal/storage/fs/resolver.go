package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	internal_errors "github.com/itchan-dev/blog/shared/errors"
	"github.com/itchan-dev/blog/shared/logger"
)

// PathResolver maps caller supplied relative names onto the upload root and
// refuses anything that would land outside of it. It does no I/O.
type PathResolver struct {
	basePath string
}

func NewPathResolver(root string) (*PathResolver, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("upload root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload root %s: %w", root, err)
	}
	return &PathResolver{basePath: filepath.Clean(abs)}, nil
}

// Root returns the canonical upload root.
func (r *PathResolver) Root() string {
	return r.basePath
}

// Resolve returns the absolute path of filename under the upload root.
// An empty filename resolves to the root itself.
func (r *PathResolver) Resolve(filename string) (string, error) {
	return r.resolveUnder(r.basePath, filename)
}

// ResolveIn resolves filename inside directory, which must itself lie under the
// upload root. directory may be absolute or relative to the root.
func (r *PathResolver) ResolveIn(directory, filename string) (string, error) {
	dir := filepath.Clean(directory)
	if !filepath.IsAbs(dir) {
		var err error
		if dir, err = r.Resolve(directory); err != nil {
			return "", err
		}
	} else if !within(r.basePath, dir) {
		return "", r.reject(directory, "directory outside upload root")
	}

	return r.resolveUnder(dir, filename)
}

func (r *PathResolver) resolveUnder(base, filename string) (string, error) {
	if strings.ContainsRune(filename, 0) {
		return "", r.reject(filename, "nul byte")
	}
	if filepath.IsAbs(filename) || filepath.VolumeName(filename) != "" || strings.HasPrefix(filename, "/") || strings.HasPrefix(filename, `\`) {
		return "", r.reject(filename, "absolute path")
	}
	if hasParentSegment(filename) {
		return "", r.reject(filename, "parent directory segment")
	}

	target := filepath.Clean(filepath.Join(base, filepath.FromSlash(filename)))
	if !within(base, target) || !within(r.basePath, target) {
		return "", r.reject(filename, "outside base")
	}
	return target, nil
}

func (r *PathResolver) reject(input, reason string) error {
	logger.Log.Warn("rejected path outside upload directory", "input", input, "reason", reason, "root", r.basePath)
	return &internal_errors.SecurityError{Path: input}
}

// hasParentSegment reports a ".." element under either separator.
func hasParentSegment(name string) bool {
	return slices.Contains(strings.FieldsFunc(name, func(c rune) bool {
		return c == '/' || c == '\\'
	}), "..")
}

// within reports whether target equals base or is a descendant of it.
// filepath.Rel keeps "/uploads2" from matching "/uploads".
func within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && !filepath.IsAbs(rel)
}
