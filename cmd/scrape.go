package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/services"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Ask the scraper to collect postings from a source",
	Run: func(cmd *cobra.Command, _ []string) {
		scrape(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	flags := scrapeCmd.Flags()
	flags.StringP("source", "s", "", "source name, for example remotive or arbeitnow")
	flags.Int("max", 50, "maximum number of postings to collect (1-500)")
	flags.String("since", "", "only postings published on or after this date (YYYY-MM-DD)")
	flags.Bool("embed", false, "submit the scraped postings to the embedder")
	flags.String("collection", services.DefaultCollection, "embedder collection to write to")

	scrapeCmd.MarkFlagRequired("source")
}

func scrape(cmd *cobra.Command) {
	e := newEnv()
	flags := cmd.Flags()

	source, _ := flags.GetString("source")
	maxJobs, _ := flags.GetInt("max")

	req := &services.ScrapeRequest{SourceName: source, MaxJobs: maxJobs}
	if raw, _ := flags.GetString("since"); raw != "" {
		since, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			e.logger.Fatal("invalid --since", zap.Error(err))
		}
		req.Since = &since
	}

	// The services accept anonymous calls; a session is forwarded when present.
	token := ""
	if sess := e.optionalSession(); sess != nil {
		token = sess.AccessToken
	}

	resp, err := e.scraper(token).Scrape(e.ctx, req)
	if err != nil {
		e.logger.Fatal("scraping", zap.Error(err))
	}

	e.logger.Info("scraped postings", zap.String("source", resp.SourceName), zap.Int("count", resp.JobCount))

	if embed, _ := flags.GetBool("embed"); !embed || len(resp.Jobs) == 0 {
		return
	}

	collection, _ := flags.GetString("collection")
	embedded, err := e.embedder(token).EmbedJobs(e.ctx, &services.EmbedJobsRequest{
		Jobs:           resp.ToEmbed(),
		CollectionName: collection,
	})
	if err != nil {
		e.logger.Fatal("embedding postings", zap.Error(err))
	}

	e.logger.Info("embedded postings", zap.String("collection", embedded.CollectionName), zap.Int("count", embedded.Count))
}
