package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fileferry/fileferry/internal/config"
	"github.com/fileferry/fileferry/internal/localfs"
	"github.com/fileferry/fileferry/internal/pathutil"
	"github.com/fileferry/fileferry/internal/util/format"
	ustrings "github.com/fileferry/fileferry/internal/util/strings"
)

// newPlanCmd creates the 'plan' command.
// v1.2.0: New command - dry-run scan with file and byte totals.
func newPlanCmd() *cobra.Command {
	var (
		followSymlinks bool
		excludeHidden  bool
		list           bool
	)

	cmd := &cobra.Command{
		Use:   "plan SOURCE",
		Short: "Scan a source tree and report what a transfer would copy",
		Long: `Walk SOURCE the same way copy and move do and report the file count
and total size, without writing anything. Use --list to print every
file that would be transferred.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(args[0], followSymlinks, excludeHidden, list)
		},
	}

	cmd.Flags().BoolVar(&followSymlinks, "follow-symlinks", false, "Descend into symlinked directories")
	cmd.Flags().BoolVar(&excludeHidden, "exclude-hidden", false, "Skip dot-prefixed files and directories")
	cmd.Flags().BoolVar(&list, "list", false, "Print every file the transfer would copy")
	return cmd
}

func runPlan(source string, followSymlinks, excludeHidden, list bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	srcAbs, err := pathutil.ResolveAbsolutePath(source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}

	enum := localfs.NewEnumerator(srcAbs, localfs.Options{
		FollowSymlinks: followSymlinks || cfg.Enumeration.FollowSymlinks,
		ExcludeHidden:  excludeHidden || cfg.Enumeration.ExcludeHidden,
	})

	var spinner *progressbar.ProgressBar
	if !list && !quiet && term.IsTerminal(int(os.Stderr.Fd())) {
		spinner = progressbar.NewOptions64(-1,
			progressbar.OptionSetDescription("Scanning "+pathutil.ShortenForDisplay(srcAbs, 48)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
	}

	ctx := GetContext()
	entries, walkErr := enum.Enumerate(ctx)

	var files int
	var bytes int64
	for entry := range entries {
		files++
		bytes += entry.Size
		if list {
			fmt.Printf("%10s  %s\n", format.Bytes(entry.Size), entry.RelPath)
		} else if spinner != nil {
			spinner.Describe(fmt.Sprintf("Scanning... %d %s, %s",
				files, ustrings.Pluralize("file", int64(files)), format.Bytes(bytes)))
			_ = spinner.Add(1)
		}
	}
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err := walkErr(); err != nil {
		return err
	}

	fmt.Printf("Scan complete: %d %s, %s\n",
		files, ustrings.Pluralize("file", int64(files)), format.Bytes(bytes))
	return nil
}
