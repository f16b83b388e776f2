package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fileferry/fileferry/internal/config"
	"github.com/fileferry/fileferry/internal/core"
	"github.com/fileferry/fileferry/internal/pathutil"
	"github.com/fileferry/fileferry/internal/transfer"
)

// transferFlags are the per-invocation overrides shared by copy and
// move. Unset flags fall back to the config file defaults.
type transferFlags struct {
	followSymlinks bool
	excludeHidden  bool
	verify         bool
}

func addTransferFlags(cmd *cobra.Command, f *transferFlags) {
	cmd.Flags().BoolVar(&f.followSymlinks, "follow-symlinks", false, "Descend into symlinked directories")
	cmd.Flags().BoolVar(&f.excludeHidden, "exclude-hidden", false, "Skip dot-prefixed files and directories")
	cmd.Flags().BoolVar(&f.verify, "verify", false, "Re-read each destination file and compare checksums")
}

// newCopyCmd creates the 'copy' command.
func newCopyCmd() *cobra.Command {
	var flags transferFlags

	cmd := &cobra.Command{
		Use:   "copy SOURCE DEST",
		Short: "Copy a file or directory tree",
		Long: `Copy SOURCE into DEST with live progress.

SOURCE may be a single file or a directory tree; DEST is the target
directory. Files that cannot be read are skipped and the transfer
continues; running out of space on DEST stops it.

While a transfer runs, press p then Enter to pause and r then Enter to
resume. Ctrl+C cancels: the file being copied is removed rather than
left half-written, files already copied stay.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(args[0], args[1], flags, false)
		},
	}
	addTransferFlags(cmd, &flags)
	return cmd
}

// newMoveCmd creates the 'move' command.
// v1.1.0: New command - copy, verify, then remove the source.
func newMoveCmd() *cobra.Command {
	var flags transferFlags

	cmd := &cobra.Command{
		Use:   "move SOURCE DEST",
		Short: "Move a file or directory tree",
		Long: `Move SOURCE into DEST: copy with live progress, then remove each
source file after its copy succeeds. Skipped files keep their source.

Controls are the same as for copy: p/r with Enter pause and resume,
Ctrl+C cancels without leaving a partial file.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(args[0], args[1], flags, true)
		},
	}
	addTransferFlags(cmd, &flags)
	return cmd
}

func runTransfer(source, dest string, flags transferFlags, removeSource bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	srcAbs, err := pathutil.ResolveAbsolutePath(source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	destAbs, err := pathutil.ResolveAbsolutePath(dest)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	info, err := os.Stat(srcAbs)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if info.IsDir() && insideTree(destAbs, srcAbs) {
		return errors.New("destination is inside the source tree")
	}

	engine := core.New(cfg, GetLogger())
	defer engine.Stop()

	var r *renderer
	if !quiet {
		// Subscribed before Submit so no events are missed.
		r = newRenderer(engine)
	}

	id, err := engine.Submit(transfer.JobSpec{
		Source: srcAbs,
		Dest:   destAbs,
		Options: transfer.JobOptions{
			FollowSymlinks: flags.followSymlinks || cfg.Enumeration.FollowSymlinks,
			ExcludeHidden:  flags.excludeHidden || cfg.Enumeration.ExcludeHidden,
			Verify:         flags.verify || cfg.Transfer.Verify,
			RemoveSource:   removeSource,
		},
	})
	if err != nil {
		return err
	}

	// Ctrl+C cancels the job; the engine removes the partial file and
	// settles the final state before Wait returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-GetContext().Done():
			_ = engine.Cancel(id)
		case <-done:
		}
	}()

	if r != nil {
		startPauseControl(engine, id, done)
		return r.Run(id)
	}
	return engine.Wait(context.Background(), id)
}

// insideTree reports whether path is dir or lies under it.
func insideTree(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

// startPauseControl lets the user pause and resume from stdin without
// raw terminal mode: p pauses, r resumes, each followed by Enter.
func startPauseControl(engine *core.Engine, jobID string, done <-chan struct{}) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-done:
				return
			}
		}
	}()
	go func() {
		for {
			select {
			case <-done:
				return
			case line := <-lines:
				switch strings.ToLower(line) {
				case "p":
					_ = engine.Pause(jobID)
				case "r":
					_ = engine.Resume(jobID)
				}
			}
		}
	}()
}
