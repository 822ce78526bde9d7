package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/KNICEX/crypto-alert/internal/config"
	"github.com/KNICEX/crypto-alert/internal/metrics"
	"github.com/KNICEX/crypto-alert/internal/service/monitor"
	"github.com/KNICEX/crypto-alert/internal/web"
	"github.com/KNICEX/crypto-alert/ioc"
	"github.com/KNICEX/crypto-alert/pkg/decimalx"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const defaultConfigFile = "./config/config.dev.yaml"

type app struct {
	configFile string
	envFile    string

	cfg      *config.Config
	closeLog func()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "crypto-alert",
		Short:         "Crypto price threshold alerts with a daily digest",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.closeLog != nil {
				a.closeLog()
			}
		},
	}
	// --config=./config/xxx.yaml
	root.PersistentFlags().StringVar(&a.configFile, "config", defaultConfigFile, "specify config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "load environment variables from file (default .env if present)")
	root.PersistentFlags().String("log-level", "info", "debug, info, warn or error")
	bindFlag(root.PersistentFlags(), "log.level", "log-level")

	root.AddCommand(a.serveCmd(), a.runCmd(), a.checkCmd(), a.digestCmd(), a.testNotifyCmd(), a.historyCmd())
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	file := a.configFile
	// 默认配置文件不存在时只用默认值和环境变量
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			file = ""
		}
	}

	cfg, err := config.Load(viper.GetViper(), file, a.envFile)
	if err != nil {
		return err
	}
	closeLog, err := ioc.InitLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg, a.closeLog = cfg, closeLog
	slog.Debug("config loaded", "file", file, "assets", len(cfg.Assets), "suppress", cfg.Notify.Suppress)
	return nil
}

func (a *app) monitor(m *metrics.Metrics) (*monitor.Service, error) {
	return ioc.InitMonitor(a.cfg, m)
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web front end and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, reg := ioc.InitMetrics()
			svc, err := a.monitor(m)
			if err != nil {
				return err
			}
			chat, err := ioc.InitLLM(ctx, a.cfg.LLM)
			if err != nil {
				return err
			}

			server := web.NewServer(svc, chat,
				web.WithSuppressed(a.cfg.Notify.Suppress),
				web.WithGatherer(reg),
			)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Run(ctx, a.cfg.Web.Addr)
			})
			// 静默部署上不跑定时任务
			if !a.cfg.Notify.Suppress {
				sched, err := ioc.InitScheduler(a.cfg.Schedule, svc, false)
				if err != nil {
					return err
				}
				g.Go(func() error {
					return ignoreCanceled(sched.Run(ctx))
				})
			} else {
				slog.Info("notifications suppressed, scheduler disabled")
			}
			return g.Wait()
		},
	}
	cmd.Flags().String("addr", ":5000", "web listen address")
	bindFlag(cmd.Flags(), "web.addr", "addr")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler only: a check now, then hourly checks and the daily digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _ := ioc.InitMetrics()
			svc, err := a.monitor(m)
			if err != nil {
				return err
			}
			sched, err := ioc.InitScheduler(a.cfg.Schedule, svc, false)
			if err != nil {
				return err
			}
			return ignoreCanceled(sched.Run(cmd.Context()))
		},
	}
}

func (a *app) checkCmd() *cobra.Command {
	var skipNotify bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single price check and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.monitor(nil)
			if err != nil {
				return err
			}
			summary := svc.Check(cmd.Context(), skipNotify)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&skipNotify, "skip-notify", false, "record alerts without sending notifications")
	return cmd
}

func (a *app) digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Send the daily digest now",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.monitor(nil)
			if err != nil {
				return err
			}
			sent, err := svc.Digest(cmd.Context())
			if err != nil {
				return err
			}
			if sent {
				fmt.Fprintln(cmd.OutOrStdout(), "📧 Daily summary sent")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "No summary sent")
			}
			return nil
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [asset]",
		Short: "List recent alerts, including those already sent in a digest (sqlite ledger only)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.monitor(nil)
			if err != nil {
				return err
			}
			asset := ""
			if len(args) == 1 {
				asset = args[0]
			}
			events, err := svc.History(cmd.Context(), asset, limit)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Time", "Asset", "Direction", "Price", "Target"})
			table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
				tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})
			for _, e := range events {
				table.Append([]string{
					e.At.Format("2006-01-02 15:04:05"),
					e.Asset,
					string(e.Direction),
					decimalx.FormatFloat(e.Price),
					decimalx.FormatFloat(e.Threshold),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of alerts")
	return cmd
}

func (a *app) testNotifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the configured channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.monitor(nil)
			if err != nil {
				return err
			}
			if err = svc.TestNotify(cmd.Context()); err != nil {
				return fmt.Errorf("test notification failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Test notification sent")
			return nil
		},
	}
}

// bindFlag 命令行参数优先于配置文件和环境变量
func bindFlag(fs *pflag.FlagSet, key, name string) {
	if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
		panic(err)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
