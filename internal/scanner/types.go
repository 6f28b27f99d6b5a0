package scanner

import (
	"github.com/hanulsoft/scenarium/internal/scenario"
)

// Warning reports a non-fatal problem encountered during a scan
// (unreadable directory, stat failure). Warnings never abort the walk.
type Warning struct {
	Path string
	Err  error
}

// Result is one item streamed from a scan: either a discovered package
// or a warning, never both.
type Result struct {
	Package *scenario.Package
	Warning *Warning
}

// Options configures a scan pass.
type Options struct {
	// Roots are the directories to walk. At least one is required.
	Roots []string

	// ExcludePatterns are directory patterns to skip
	// (e.g. "**/trash/**", "backup/**").
	ExcludePatterns []string

	// FollowSymlinks enables descending into symlinked directories.
	// Each physical target is visited at most once per pass.
	FollowSymlinks bool
}

// defaultExcludeDirs are always skipped.
var defaultExcludeDirs = []string{
	"**/.git/**",
	"**/.scenarium/**",
	"**/node_modules/**",
	"**/__pycache__/**",
}
