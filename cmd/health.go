package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/services"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the scraper, embedder and matcher services",
	Run: func(cmd *cobra.Command, _ []string) {
		health(cmd)
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().String("watch", "", "keep checking on a cron schedule, for example '@every 30s' or '*/5 * * * *'")
}

func health(cmd *cobra.Command) {
	e := newEnv()

	checkers := []services.HealthChecker{
		e.scraper(""),
		e.embedder(""),
		e.matcher(""),
	}

	check := func(ctx context.Context) services.HealthReport {
		report := services.CheckAll(ctx, e.logger, checkers...)
		e.logger.Info("health",
			zap.Bool(services.ScraperName, report[services.ScraperName]),
			zap.Bool(services.EmbedderName, report[services.EmbedderName]),
			zap.Bool(services.MatcherName, report[services.MatcherName]),
		)
		return report
	}

	spec, _ := cmd.Flags().GetString("watch")
	if spec == "" {
		if !check(e.ctx).Healthy() {
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(e.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	if _, err := c.AddFunc(spec, func() { check(ctx) }); err != nil {
		e.logger.Fatal("invalid --watch schedule", zap.String("spec", spec), zap.Error(err))
	}

	check(ctx)
	c.Start()
	e.logger.Info("watching services", zap.String("schedule", spec))

	<-ctx.Done()
	<-c.Stop().Done()
	e.logger.Info("stopped watching")
}
