package fs

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// FileNameGenerator picks physical names of the form <unix-millis>_<4 digits>.<ext>.
// Uniqueness is best effort; Storage.Save retries on an existing name.
type FileNameGenerator struct {
	allowedExts map[string]bool
	defaultExt  string
	now         func() time.Time
	randIntN    func(n int) int
}

type FileNameOption func(*FileNameGenerator)

// WithClock replaces the time source.
func WithClock(now func() time.Time) FileNameOption {
	return func(g *FileNameGenerator) { g.now = now }
}

// WithRandom replaces the entropy source. randIntN must return a value in [0, n).
func WithRandom(randIntN func(n int) int) FileNameOption {
	return func(g *FileNameGenerator) { g.randIntN = randIntN }
}

func NewFileNameGenerator(allowedExts []string, defaultExt string, opts ...FileNameOption) *FileNameGenerator {
	g := &FileNameGenerator{
		allowedExts: make(map[string]bool, len(allowedExts)),
		defaultExt:  normalizeExt(defaultExt),
		now:         time.Now,
		randIntN:    rand.IntN,
	}
	for _, e := range allowedExts {
		g.allowedExts[normalizeExt(e)] = true
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *FileNameGenerator) Generate(originalFilename string) string {
	suffix := 1000 + g.randIntN(9000)
	return fmt.Sprintf("%d_%04d.%s", g.now().UnixMilli(), suffix, g.Extension(originalFilename))
}

// Extension returns the allow-listed extension of name, or the default one.
func (g *FileNameGenerator) Extension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return g.defaultExt
	}
	ext := strings.ToLower(name[idx+1:])
	if ext == "" || !g.allowedExts[ext] {
		return g.defaultExt
	}
	return ext
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
