package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"herald/internal/analytics"
	"herald/internal/cmdlog"
	"herald/internal/config"
	"herald/internal/schedule"
	"herald/internal/server"
	"herald/internal/store"
	"herald/internal/theme"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(*cobra.Command, []string) error {
			return cmdlog.Run("init", func() error {
				if _, err := os.Stat(cfgPath); err == nil && !force {
					return fmt.Errorf("%s exists, pass --force to overwrite", cfgPath)
				}
				if err := config.Save(cfgPath, config.Default()); err != nil {
					return err
				}
				abs, _ := filepath.Abs(cfgPath)
				theme.PrintBanner()
				fmt.Println("Config written to:", abs)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Perform one engagement run now",
		RunE: func(*cobra.Command, []string) error {
			return cmdlog.Run("run", func() error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				ctx, stop := signalContext()
				defer stop()
				a, err := newApp(ctx, cfg)
				if err != nil {
					return err
				}
				defer a.Close()
				sum, err := a.runner.RunOnce(ctx, "cli")
				out, _ := json.MarshalIndent(sum, "", "  ")
				fmt.Println(string(out))
				return err
			})
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run on the configured cron schedules and serve the HTTP trigger and metrics",
		RunE: func(*cobra.Command, []string) error {
			return cmdlog.Run("serve", func() error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				ctx, stop := signalContext()
				defer stop()
				a, err := newApp(ctx, cfg)
				if err != nil {
					return err
				}
				defer a.Close()

				cr, err := schedule.NewCron(cfg.Engagement.Schedules, func(ctx context.Context) {
					// failures are logged and counted by the runner
					_, _ = a.runner.RunOnce(ctx, "cron")
				})
				if err != nil {
					return err
				}
				theme.PrintBanner()

				errCh := make(chan error, 2)
				go func() { errCh <- cr.Run(ctx) }()
				go func() {
					errCh <- server.Serve(ctx, cfg.Server.Addr, server.NewRouter(ctx, a.runner, a.db, a.db))
				}()

				var first error
				for range 2 {
					if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) && first == nil {
						first = err
						stop()
					}
				}
				a.runner.Wait()
				return first
			})
		},
	}
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log the browser session in and persist its cookies",
		RunE: func(*cobra.Command, []string) error {
			return cmdlog.Run("login", func() error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				ctx, stop := signalContext()
				defer stop()
				a, err := newApp(ctx, cfg)
				if err != nil {
					return err
				}
				defer a.Close()
				if err := a.session.Init(ctx); err != nil {
					return err
				}
				if err := a.session.Login(ctx, browserCreds(cfg.Account)); err != nil {
					return err
				}
				fmt.Println("Session authenticated; cookies saved under", cfg.Browser.SessionKey)
				return nil
			})
		},
	}
}

func newStatsCmd() *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the action log",
		RunE: func(*cobra.Command, []string) error {
			return cmdlog.Run("stats", func() error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				db, err := store.Open(cfg.Storage.Driver, cfg.Storage.DSN)
				if err != nil {
					return err
				}
				defer db.Close()
				recs, err := db.ListActions(context.Background(), time.Now().Add(-window), 0)
				if err != nil {
					return err
				}
				t := analytics.Summarize(recs)
				fmt.Printf("Last %s: %d records, %d executed (%d ok, %d failed, %.0f%%), %d authors\n",
					window, t.Records, t.Executed, t.Succeeded, t.Failed, t.SuccessRate()*100, t.Users)
				fmt.Printf("By type: %v\nBy channel: %v\n", t.ByType, t.ByMethod)
				hourly := analytics.HourlyActivity(recs)
				for _, k := range analytics.SortedBucketKeys(hourly) {
					fmt.Printf("%s -> %v\n", k.Format("2006-01-02 15:00"), hourly[k])
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&window, "since", 24*time.Hour, "how far back to look")
	return cmd
}

func newScheduleCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show the next engagement window and cron firings",
		RunE: func(*cobra.Command, []string) error {
			return cmdlog.Run("schedule", func() error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				now := time.Now().UTC()
				fmt.Println("Next window:", schedule.NextWindow(now, cfg.Engagement.QuietHours).Format(time.RFC3339))
				runs, err := schedule.NextRuns(cfg.Engagement.Schedules, now, n)
				if err != nil {
					return err
				}
				for _, r := range runs {
					mark := ""
					if schedule.IsQuiet(r, cfg.Engagement.QuietHours) {
						mark = " (quiet, will skip)"
					}
					fmt.Println("Next run:", r.Format(time.RFC3339)+mark)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 5, "number of upcoming runs to show")
	return cmd
}
