package strategy

import (
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
)

// EvaluationContext is the scratch state shared by the requirements and the
// extractor of one (directory, strategy) pair.
type EvaluationContext struct {
	// Root is the absolute source root the search started from.
	Root string
	// Dir is the slash separated directory relative to Root, "." for the root.
	Dir   string
	Depth int
	// FS is rooted at Root.
	FS     billy.Filesystem
	values map[string]any
}

// NewEvaluationContext creates a context for dir below root.
func NewEvaluationContext(fs billy.Filesystem, root, dir string, depth int) *EvaluationContext {
	if dir == "" {
		dir = "."
	}
	return &EvaluationContext{
		Root:   root,
		Dir:    dir,
		Depth:  depth,
		FS:     fs,
		values: make(map[string]any),
	}
}

// AbsDir returns the absolute path of the directory on the host.
func (ec *EvaluationContext) AbsDir() string {
	return filepath.Join(ec.Root, filepath.FromSlash(ec.Dir))
}

// Path returns the FS path of a file in the directory.
func (ec *EvaluationContext) Path(name string) string {
	return path.Join(ec.Dir, name)
}

// Set stores a resolved value.
func (ec *EvaluationContext) Set(key string, value any) {
	ec.values[key] = value
}

// Value returns a resolved value.
func (ec *EvaluationContext) Value(key string) (any, bool) {
	v, ok := ec.values[key]
	return v, ok
}

// String returns a resolved string value, or "" when it is unset.
func (ec *EvaluationContext) String(key string) string {
	v, _ := ec.values[key].(string)
	return v
}
