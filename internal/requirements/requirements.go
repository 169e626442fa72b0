// Package requirements holds the reusable needs and demands strategies are
// assembled from.
package requirements

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethanolivertroy/depdetect/internal/executable"
	"github.com/ethanolivertroy/depdetect/internal/strategy"
)

type fileRequirement struct {
	key  string
	name string
}

// File passes when the directory contains a regular file called name. The
// passed value is the absolute path of the file.
func File(key, name string) strategy.Requirement {
	return &fileRequirement{key: key, name: name}
}

func (r *fileRequirement) Key() string { return r.key }

func (r *fileRequirement) Evaluate(_ context.Context, ec *strategy.EvaluationContext) strategy.RequirementEvaluation {
	fi, err := ec.FS.Stat(ec.Path(r.name))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return strategy.Failed(r.key, fmt.Sprintf("%s not found", r.name))
	case err != nil:
		return strategy.Exception(r.key, fmt.Errorf("checking %s: %w", r.name, err))
	case fi.IsDir():
		return strategy.Failed(r.key, fmt.Sprintf("%s is a directory", r.name))
	}
	abs := filepath.Join(ec.AbsDir(), r.name)
	return strategy.Passed(r.key, abs, fmt.Sprintf("found %s", r.name))
}

type executableRequirement struct {
	key      string
	name     string
	override string
	resolver *executable.Resolver
}

// Executable passes when the named tool can be located, either at override or
// on the PATH. The passed value is the resolved path.
func Executable(key, name, override string, resolver *executable.Resolver) strategy.Requirement {
	return &executableRequirement{key: key, name: name, override: override, resolver: resolver}
}

func (r *executableRequirement) Key() string { return r.key }

func (r *executableRequirement) Evaluate(_ context.Context, _ *strategy.EvaluationContext) strategy.RequirementEvaluation {
	p, err := r.resolver.Resolve(r.name, r.override)
	switch {
	case errors.Is(err, executable.ErrNotFound):
		return strategy.Failed(r.key, err.Error())
	case err != nil:
		return strategy.Exception(r.key, err)
	}
	return strategy.Passed(r.key, p, fmt.Sprintf("using %s", p))
}
