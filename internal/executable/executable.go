// Package executable locates and runs the external build tools that some
// strategies depend on.
package executable

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/ethanolivertroy/depdetect/internal/cache"
)

// ErrNotFound is returned when an executable cannot be located.
var ErrNotFound = errors.New("executable not found")

// Resolver locates executables on the PATH and memoizes the answers.
type Resolver struct {
	lookPath func(string) (string, error)
	cache    *lru.Cache[string, resolved]
}

type resolved struct {
	path string
	err  error
}

// NewResolver creates a resolver remembering up to size lookups.
func NewResolver(size int) (*Resolver, error) {
	c, err := lru.New[string, resolved](size)
	if err != nil {
		return nil, err
	}
	return &Resolver{lookPath: exec.LookPath, cache: c}, nil
}

// Resolve returns the path of name. A non-empty override is used instead of
// searching the PATH and must point to an executable file.
func (r *Resolver) Resolve(name, override string) (string, error) {
	key := name + "\x00" + override
	if v, ok := r.cache.Get(key); ok {
		return v.path, v.err
	}

	var v resolved
	if override != "" {
		v = checkOverride(name, override)
	} else {
		p, err := r.lookPath(name)
		if err != nil {
			v.err = fmt.Errorf("%w: %s: %v", ErrNotFound, name, err)
		} else {
			v.path = p
		}
	}
	r.cache.Add(key, v)
	return v.path, v.err
}

func checkOverride(name, override string) resolved {
	fi, err := os.Stat(override)
	switch {
	case err != nil:
		return resolved{err: fmt.Errorf("%w: %s override %s: %v", ErrNotFound, name, override, err)}
	case fi.IsDir() || fi.Mode()&0o111 == 0:
		return resolved{err: fmt.Errorf("%w: %s override %s is not executable", ErrNotFound, name, override)}
	default:
		return resolved{path: override}
	}
}

// Command describes one process invocation.
type Command struct {
	Dir  string
	Path string
	Args []string
	Env  []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

// ExitError is returned when a command exits with a non-zero status.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Runner executes commands with a timeout.
type Runner struct {
	Timeout time.Duration
	// Cache, when set, is used by RunCached.
	Cache *cache.Cache
}

// NewRunner creates a runner. c may be nil to disable output caching.
func NewRunner(timeout time.Duration, c *cache.Cache) *Runner {
	return &Runner{Timeout: timeout, Cache: c}
}

// Run executes cmd and returns its standard output.
func (r *Runner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("command", cmd.String()).Str("dir", cmd.Dir).Msg("running command")

	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("running %s: %w", cmd, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, &ExitError{
			Command:  cmd.String(),
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", cmd, err)
	}
	return stdout.Bytes(), nil
}

// RunCached runs cmd unless output stored under key is still fresh. Only
// successful output is cached.
func (r *Runner) RunCached(ctx context.Context, key string, cmd Command) ([]byte, error) {
	if r.Cache == nil {
		return r.Run(ctx, cmd)
	}
	key = cache.Key([]byte(key), []byte(cmd.String()))
	if data, ok := r.Cache.Get(key); ok {
		zerolog.Ctx(ctx).Debug().Str("command", cmd.String()).Msg("using cached command output")
		return data, nil
	}
	out, err := r.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := r.Cache.Set(key, out); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("unable to cache command output")
	}
	return out, nil
}
