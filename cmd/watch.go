package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/catalogd/internal/catalog"
	"github.com/ziadkadry99/catalogd/internal/fetcher"
	"github.com/ziadkadry99/catalogd/internal/reconciler"
)

var (
	watchRemote   string
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the catalog and print a line whenever it changes",
	Long: `Resolves the catalog the way the local-mode page does (remote, then the
local file, then the built-in defaults) and prints a summary each time the
result changes. Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		remote := cfg.Fetcher.RemoteURL
		if watchRemote != "" {
			remote = watchRemote
		}
		interval := cfg.Sync.PollInterval
		if watchInterval > 0 {
			interval = watchInterval
		}
		flush, err := setupLogging(cfg)
		if err != nil {
			return err
		}
		defer flush()

		f := fetcher.New(fetcher.Config{RemoteURL: remote, Timeout: cfg.Fetcher.Timeout}, newLocalStore(cfg, nil))
		src := fetcherSource{f}
		out := cmd.OutOrStdout()
		rec := reconciler.New(src, func(_ context.Context, services []catalog.Service) {
			fmt.Fprintf(out, "%s  catalog changed: %d services\n", time.Now().Format(time.TimeOnly), len(services))
		}, interval)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res := f.Fetch(ctx)
		fmt.Fprintf(out, "watching %d services from %s every %s\n", len(res.Services), res.Source, rec.Interval())
		return rec.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchRemote, "remote", "", "remote catalog base URL (overrides fetcher.remote_url)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "poll interval (overrides sync.poll_interval)")
	rootCmd.AddCommand(watchCmd)
}
