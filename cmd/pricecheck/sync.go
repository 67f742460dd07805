package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperengineering/pricecheck"
	pcsync "github.com/hyperengineering/pricecheck/internal/sync"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload collected prices and refresh the local catalogue",
	Long: `Upload every collected price, then replace the local store with the
backend's current data.

If some uploads fail you are asked whether to continue; continuing discards
the failed prices. Use --yes or --no to answer in advance.`,
	Example: `  pricecheck sync
  pricecheck sync --no     # never discard failed uploads
  pricecheck sync --yes    # continue even if uploads fail`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var (
	syncYes bool
	syncNo  bool
)

func init() {
	syncCmd.Flags().BoolVar(&syncYes, "yes", false, "Continue after failed uploads, discarding them")
	syncCmd.Flags().BoolVar(&syncNo, "no", false, "Abort after failed uploads")
	syncCmd.MarkFlagsMutuallyExclusive("yes", "no")
}

// promptConfirmer asks on the terminal whether to continue a sync.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(ctx context.Context, d pcsync.Decision) (bool, error) {
	if d.State == pcsync.StateUploadFailed {
		printWarning(p.out, "Upload failed: none of %d collected prices were accepted", d.Total)
	} else {
		printWarning(p.out, "Upload partly failed: %d of %d collected prices were rejected", d.Failed, d.Total)
	}
	for _, e := range d.Errors {
		printMuted(p.out, "  %s", e)
	}
	fmt.Fprint(p.out, "Continue and discard the failed prices? [y/N] ")

	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// syncConfirmer picks the confirmer from the flags.
func syncConfirmer(cmd *cobra.Command) pcsync.Confirmer {
	switch {
	case syncYes:
		return pcsync.Always(true)
	case syncNo:
		return pcsync.Always(false)
	default:
		return promptConfirmer{in: cmd.InOrStdin(), out: cmd.ErrOrStderr()}
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if client.Config().IsOffline() {
		return fmt.Errorf("sync: no backend configured (set PRICECHECK_BACKEND_URL or --backend-url): %w", pricecheck.ErrOffline)
	}

	opts := []pcsync.Option{pcsync.WithConfirmer(syncConfirmer(cmd))}
	interactive := !syncYes && !syncNo
	if interactive && !outputJSON {
		// a spinner would overwrite the prompt, so report progress by state
		opts = append(opts, pcsync.WithObserver(func(s pcsync.State) {
			if s != pcsync.StateIdle {
				printMuted(cmd.ErrOrStderr(), "%s...", s)
			}
		}))
	}
	syncer := pcsync.ForClient(client, opts...)

	start := time.Now()
	var report *pcsync.Report
	run := func() error {
		var serr error
		report, serr = syncer.Sync(context.Background())
		return serr
	}
	if interactive {
		err = run()
	} else {
		err = runWithSpinner(cmd.ErrOrStderr(), "Synchronizing", run)
	}
	elapsed := time.Since(start)

	if errors.Is(err, pricecheck.ErrSyncAborted) {
		if outputJSON {
			_ = outputAsJSON(cmd, report)
		} else if report != nil {
			printInfo(cmd.OutOrStdout(), "Sync aborted: %d accepted prices were marked uploaded, the rest stay pending", report.Marked)
		}
		return err
	}
	if err != nil {
		return err
	}

	if outputJSON {
		return outputAsJSON(cmd, report)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderMarkdown(syncReportMarkdown(report, elapsed)))
	return nil
}
