package localfs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fileferry/fileferry/internal/constants"
)

// Enumerator walks a source root in deterministic lexicographic order.
// Each Enumerate call restarts the walk from scratch, so a retried job
// sees a fresh view of the tree.
type Enumerator struct {
	root string
	opts Options
}

// NewEnumerator creates an enumerator for the given source root. The
// root may be a directory or a single file.
func NewEnumerator(root string, opts Options) *Enumerator {
	return &Enumerator{root: root, opts: opts}
}

// Root returns the source root this enumerator walks.
func (e *Enumerator) Root() string { return e.root }

// Enumerate streams entries in deterministic depth-first lexicographic
// order. The returned channel is closed when the walk finishes; the
// returned error function blocks until then and reports the terminal
// error, if any. Cancel the context to unblock an abandoned walk.
// Unreadable entries below the root are skipped with a log line; an
// unreadable root, a missing root, or a symlink cycle ends the walk
// with an EnumerationError.
func (e *Enumerator) Enumerate(ctx context.Context) (<-chan FileEntry, func() error) {
	out := make(chan FileEntry, constants.EnumerateQueueSize)
	done := make(chan struct{})
	var walkErr error

	go func() {
		defer close(done)
		defer close(out)
		walkErr = e.run(ctx, out)
	}()

	return out, func() error {
		<-done
		return walkErr
	}
}

// Count drains one full enumeration and returns the totals. Used for
// dry-run summaries and preflight space checks.
func (e *Enumerator) Count(ctx context.Context) (files int, bytes int64, err error) {
	ch, errFn := e.Enumerate(ctx)
	for entry := range ch {
		files++
		bytes += entry.Size
	}
	return files, bytes, errFn()
}

func (e *Enumerator) run(ctx context.Context, out chan<- FileEntry) error {
	rootInfo, err := os.Stat(e.root)
	if err != nil {
		return &EnumerationError{Root: e.root, Err: err}
	}

	if !rootInfo.IsDir() {
		// Single-file source: one task named after the file itself.
		return e.send(ctx, out, FileEntry{
			RelPath: filepath.Base(e.root),
			AbsPath: e.root,
			Size:    rootInfo.Size(),
			Mode:    rootInfo.Mode(),
			ModTime: rootInfo.ModTime(),
		})
	}

	// trail holds the canonical paths of the directories on the current
	// walk path; revisiting one means a symlink cycle.
	trail := make(map[string]bool)
	return e.walkDir(ctx, e.root, "", trail, out)
}

func (e *Enumerator) walkDir(ctx context.Context, dir, rel string, trail map[string]bool, out chan<- FileEntry) error {
	if e.opts.FollowSymlinks {
		canon, err := filepath.EvalSymlinks(dir)
		if err != nil {
			// "too many links" lands here for degenerate self-cycles
			return &EnumerationError{Root: e.root, Err: err}
		}
		if trail[canon] {
			return &EnumerationError{Root: e.root, Err: ErrSymlinkCycle}
		}
		trail[canon] = true
		defer delete(trail, canon)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if rel == "" {
			return &EnumerationError{Root: e.root, Err: err}
		}
		log.Warn().Str("dir", dir).Err(err).Msg("skipping unreadable directory")
		return nil
	}

	for _, de := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		name := de.Name()
		if e.opts.ExcludeHidden && IsHiddenName(name) {
			continue
		}

		child := filepath.Join(dir, name)
		childRel := name
		if rel != "" {
			childRel = filepath.Join(rel, name)
		}

		if de.Type()&fs.ModeSymlink != 0 {
			if err := e.visitSymlink(ctx, child, childRel, trail, out); err != nil {
				return err
			}
			continue
		}

		if de.IsDir() {
			if err := e.walkDir(ctx, child, childRel, trail, out); err != nil {
				return err
			}
			continue
		}

		if !de.Type().IsRegular() {
			log.Debug().Str("path", child).Msg("skipping special file")
			continue
		}

		info, err := de.Info()
		if err != nil {
			log.Warn().Str("path", child).Err(err).Msg("skipping unreadable entry")
			continue
		}

		entry := FileEntry{
			RelPath: childRel,
			AbsPath: child,
			Size:    info.Size(),
			Mode:    info.Mode(),
			ModTime: info.ModTime(),
		}
		if err := e.send(ctx, out, entry); err != nil {
			return err
		}
	}

	return nil
}

// visitSymlink handles a symlink directory entry: skipped unless the
// enumerator follows links, in which case directories are descended
// (cycle-checked via the trail) and files are reported with the target's
// size.
func (e *Enumerator) visitSymlink(ctx context.Context, child, childRel string, trail map[string]bool, out chan<- FileEntry) error {
	if !e.opts.FollowSymlinks {
		log.Debug().Str("path", child).Msg("skipping symlink")
		return nil
	}

	info, err := os.Stat(child)
	if err != nil {
		// Dangling link; nothing to copy
		log.Warn().Str("path", child).Err(err).Msg("skipping broken symlink")
		return nil
	}

	if info.IsDir() {
		return e.walkDir(ctx, child, childRel, trail, out)
	}

	if !info.Mode().IsRegular() {
		log.Debug().Str("path", child).Msg("skipping special file")
		return nil
	}

	return e.send(ctx, out, FileEntry{
		RelPath: childRel,
		AbsPath: child,
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	})
}

func (e *Enumerator) send(ctx context.Context, out chan<- FileEntry, entry FileEntry) error {
	select {
	case out <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
