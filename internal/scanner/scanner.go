// Package scanner discovers scenario packages under configured root
// directories. A package is any directory directly containing a recognized
// descriptor file; recognized directories are not descended into further.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hanulsoft/scenarium/internal/scenario"
)

// resultBuffer is the channel buffer for streamed scan results.
const resultBuffer = 64

// Scanner walks scan roots and streams candidate scenario packages.
// A Scanner is stateless across Scan calls; each invocation re-walks
// from scratch.
type Scanner struct{}

// New creates a new Scanner.
func New() *Scanner {
	return &Scanner{}
}

// Scan walks all configured roots and streams discovered packages and
// warnings. The returned channel is closed when the walk completes or the
// context is cancelled. Unreadable directories produce warnings, not errors;
// only an empty root set fails up front.
func (s *Scanner) Scan(ctx context.Context, opts *Options) (<-chan Result, error) {
	if opts == nil || len(opts.Roots) == 0 {
		return nil, fmt.Errorf("no scan roots configured")
	}

	results := make(chan Result, resultBuffer)

	go func() {
		defer close(results)

		// One cycle guard across all roots so overlapping roots do not
		// produce duplicate candidates.
		visited := make(map[string]struct{})

		for _, root := range opts.Roots {
			if ctx.Err() != nil {
				return
			}

			absRoot, err := filepath.Abs(root)
			if err != nil {
				emitWarning(ctx, results, root, err)
				continue
			}

			info, err := os.Stat(absRoot)
			if err != nil {
				emitWarning(ctx, results, absRoot, err)
				continue
			}
			if !info.IsDir() {
				emitWarning(ctx, results, absRoot, fmt.Errorf("not a directory"))
				continue
			}

			s.walkDir(ctx, absRoot, absRoot, opts, visited, results)
		}
	}()

	return results, nil
}

// walkDir recursively walks dir, emitting a package and stopping descent as
// soon as a descriptor is found directly inside it.
func (s *Scanner) walkDir(ctx context.Context, root, dir string, opts *Options, visited map[string]struct{}, results chan<- Result) {
	if ctx.Err() != nil {
		return
	}

	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		emitWarning(ctx, results, dir, err)
		return
	}
	if _, seen := visited[canonical]; seen {
		slog.Debug("skipping already-visited directory",
			slog.String("path", dir),
			slog.String("target", canonical))
		return
	}
	visited[canonical] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		emitWarning(ctx, results, dir, err)
		return
	}

	// Recognition rule: a descriptor file directly inside this directory.
	if pkg := recognizePackage(root, dir, entries); pkg != nil {
		select {
		case results <- Result{Package: pkg}:
		case <-ctx.Done():
		}
		return
	}

	// Deterministic traversal order keeps duplicate resolution stable.
	names := make([]string, 0, len(entries))
	byName := make(map[string]os.DirEntry, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
		byName[e.Name()] = e
	}
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		entry := byName[name]

		isDir := entry.IsDir()
		if !isDir && entry.Type()&os.ModeSymlink != 0 {
			if !opts.FollowSymlinks {
				continue
			}
			target, err := os.Stat(filepath.Join(dir, name))
			if err != nil {
				emitWarning(ctx, results, filepath.Join(dir, name), err)
				continue
			}
			isDir = target.IsDir()
		}
		if !isDir {
			continue
		}

		sub := filepath.Join(dir, name)
		relPath, err := filepath.Rel(root, sub)
		if err != nil {
			continue
		}
		if s.shouldExcludeDir(relPath, opts) {
			continue
		}

		s.walkDir(ctx, root, sub, opts, visited, results)
	}
}

// recognizePackage returns a Package when entries contain a recognized
// descriptor file, nil otherwise.
func recognizePackage(root, dir string, entries []os.DirEntry) *scenario.Package {
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		kind, ok := scenario.DescriptorNames[strings.ToLower(entry.Name())]
		if !ok {
			continue
		}

		descPath := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			// Descriptor vanished mid-walk; treat the directory as unrecognized.
			return nil
		}

		return &scenario.Package{
			Path:              dir,
			Root:              root,
			DescriptorPath:    descPath,
			Kind:              kind,
			DescriptorSize:    info.Size(),
			DescriptorModTime: info.ModTime(),
		}
	}
	return nil
}

// shouldExcludeDir checks if a directory should be excluded.
func (s *Scanner) shouldExcludeDir(relPath string, opts *Options) bool {
	for _, pattern := range defaultExcludeDirs {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	return false
}

// matchDirPattern checks if a directory path matches a pattern.
// Supports "**/name/**", "dir/**", and exact prefixes.
func matchDirPattern(relPath, pattern string) bool {
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		suffix = strings.TrimSuffix(suffix, "/**")
		for _, part := range strings.Split(relPath, string(filepath.Separator)) {
			if part == suffix {
				return true
			}
		}
		return false
	}

	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return relPath == prefix || strings.HasPrefix(relPath, prefix+string(filepath.Separator))
	}

	return relPath == pattern || strings.HasPrefix(relPath, pattern+string(filepath.Separator))
}

func emitWarning(ctx context.Context, results chan<- Result, path string, err error) {
	select {
	case results <- Result{Warning: &Warning{Path: path, Err: err}}:
	case <-ctx.Done():
	}
}
