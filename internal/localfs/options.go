package localfs

// Options configures the behavior of an Enumerator.
type Options struct {
	// ExcludeHidden drops hidden files and directories (dot-prefixed)
	// from the walk. Default is false: a transfer copies everything it
	// can see, matching what the user's file manager shows them.
	ExcludeHidden bool

	// FollowSymlinks descends into symlinked directories and enumerates
	// symlinked files with their target's size. Cycles are detected and
	// rejected with an EnumerationError rather than walked forever.
	// Default is false: symlinks are skipped with a log line.
	FollowSymlinks bool
}
