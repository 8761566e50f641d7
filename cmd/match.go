package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/filtering"
	"github.com/spigell/joblens/internal/jobs"
	"github.com/spigell/joblens/internal/matching"
	"github.com/spigell/joblens/internal/preferences"
	"github.com/spigell/joblens/internal/session"
)

const (
	PromptShowJob             = "Show job details"
	PromptReportByCompany     = "Report by company"
	PromptJobsToFile          = "Dump jobs to file"
	PromptAppendToExcludeFile = "Hide listed jobs (append to exclude file)"
	PromptRefresh             = "Refresh"
	PromptExit                = "Exit"

	maxTitleWidth = 48
)

var errExit = errors.New("exit requested")

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "List jobs matching your CV",
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
	addMatchFlags(matchCmd)

	viper.BindPFlag("match.rerank", matchCmd.Flags().Lookup("rerank"))
	viper.BindPFlag("exclude-file", matchCmd.Flags().Lookup("exclude-file"))
}

func addMatchFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("location", "l", "", "keep jobs whose location contains this text")
	flags.Int("min-salary", 0, "drop jobs whose known minimum salary is lower")
	flags.IntP("limit", "n", 0, "number of matches to request (default from match.limit)")
	flags.Bool("rerank", false, "use the alternate ranking strategy")
	flags.StringP("query", "q", "", "match against this text instead of the stored CV embedding")
	flags.StringP("provider", "p", providerService, "embedding provider for --query: service or gemini")
	flags.StringSlice("exclude-company", nil, "hide jobs posted by these companies")
	flags.StringSlice("skip-filter", nil, "turn off client-side filters by name: "+strings.Join(filtering.StepNames(), ", "))
	flags.Bool("placeholder", false, "use a neutral placeholder embedding when no CV was embedded yet")
	flags.Bool("use-prefs", false, "take location and minimum salary from saved preferences when not given as flags")
	flags.BoolP("yes", "y", false, "print the list and exit without prompting")
	flags.StringP("exclude-file", "e", "", "file with jobs to hide. Default is unset.")
}

// match is the main command for the cli.
func match(cmd *cobra.Command) {
	e := newEnv()
	sess := e.session()
	config := e.config

	logger := e.logger
	logger.Info("starting the joblens", zap.String("version", version))

	embedding := resolveEmbedding(cmd, e, sess)

	query, err := buildQuery(cmd, e, sess)
	if err != nil {
		logger.Fatal("invalid flag", zap.Error(err))
	}

	listing := matching.NewListing(matching.NewRecommender(e.matcher(sess.AccessToken), logger), logger)

	if _, err := listing.Refresh(e.ctx, sess, embedding, query); err != nil {
		logger.Fatal("getting matches", zap.Error(err))
	}

	found := listing.Jobs()
	out := cmd.OutOrStdout()
	printJobs(out, found)

	if found.Len() == 0 {
		reason := "no jobs matched"
		if listing.LastError() != nil {
			reason = "matching service unavailable"
		}
		logger.Info("exiting", zap.String("reason", reason))
		return
	}

	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return
	}

	for {
		items := []string{PromptShowJob, PromptReportByCompany, PromptJobsToFile}
		if config.ExcludeFile != "" {
			items = append(items, PromptAppendToExcludeFile)
		}
		items = append(items, PromptRefresh, PromptExit)

		prompt := promptui.Select{
			Label: fmt.Sprintf("%d jobs. What next?", found.Len()),
			Items: items,
		}

		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		switch action {
		case PromptRefresh:
			if _, err := listing.Refresh(e.ctx, sess, embedding, query); err != nil {
				logger.Fatal("getting matches", zap.Error(err))
			}
			found = listing.Jobs()
			printJobs(out, found)
			if found.Len() == 0 {
				logger.Info("exiting", zap.String("reason", "no jobs after refresh"))
				return
			}
			continue
		case PromptShowJob:
			job, err := selectJob(found)
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
			printJobDetails(out, job)
			continue
		}

		if err := handleAction(action, logger, config, found); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}

		if found.Len() == 0 {
			logger.Info("exiting", zap.String("reason", "no jobs left"))
			return
		}
	}
}

func handleAction(action string, logger *zap.Logger, config *Config, found *jobs.Jobs) error {
	switch action {
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(found.ReportByCompany(), "", "  ")
		logger.Info(string(pretty), zap.Int("jobs count", found.Len()))
		return nil
	case PromptJobsToFile:
		filename, err := found.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		excluded, err := jobs.GetExcludedJobsFromFile(config.ExcludeFile)
		if err != nil {
			return err
		}

		excluded.Append(found.ToExcluded())

		if err := excluded.ToFile(config.ExcludeFile); err != nil {
			return err
		}

		logger.Info("appended to exclude file", zap.String("filename", config.ExcludeFile))

		found.Exclude(jobs.JobIDField, excluded.JobIDs())
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// selectJob asks for one of the listed jobs.
func selectJob(found *jobs.Jobs) (*jobs.Job, error) {
	items := make([]string, 0, found.Len())
	for _, job := range found.Items {
		items = append(items, fmt.Sprintf("%s | %s | %s", job.ID, truncate(job.Title, maxTitleWidth), job.Company))
	}

	prompt := promptui.Select{Label: "Job", Items: items, Size: 10}
	_, selected, err := prompt.Run()
	if err != nil {
		return nil, err
	}

	id, _, _ := strings.Cut(selected, " | ")
	job := found.FindByID(id)
	if job == nil {
		return nil, fmt.Errorf("job %s is no longer listed", id)
	}
	return job, nil
}

func printJobDetails(w io.Writer, job *jobs.Job) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", job.ID)
	fmt.Fprintf(tw, "Title\t%s\n", job.Title)
	fmt.Fprintf(tw, "Company\t%s\n", job.Company)
	fmt.Fprintf(tw, "Location\t%s\n", job.Location)
	fmt.Fprintf(tw, "Salary\t%s\n", job.SalaryRange())
	fmt.Fprintf(tw, "Match\t%s%%\n", strconv.FormatFloat(job.MatchScore, 'f', -1, 64))
	fmt.Fprintf(tw, "URL\t%s\n", job.JobURL)
	tw.Flush()

	if job.Description != "" {
		fmt.Fprintf(w, "\n%s\n", job.Description)
	}
	if job.Requirements != "" {
		fmt.Fprintf(w, "\nRequirements:\n%s\n", job.Requirements)
	}
}

// resolveEmbedding picks the vector to match against: query text, then the
// stored CV embedding, then the placeholder when allowed.
func resolveEmbedding(cmd *cobra.Command, e *env, sess *session.Session) []float64 {
	if text, _ := cmd.Flags().GetString("query"); strings.TrimSpace(text) != "" {
		provider, _ := cmd.Flags().GetString("provider")
		vector, err := e.textEmbedder(provider, sess.AccessToken).Embed(e.ctx, strings.TrimSpace(text))
		if err != nil {
			e.logger.Fatal("embedding query", zap.Error(err))
		}
		return vector
	}

	cache := e.embeddings()
	defer cache.Close()

	entry, found, err := cache.Get(e.ctx, sess.UserID)
	if err != nil {
		e.logger.Fatal("reading stored embedding", zap.Error(err))
	}
	if found {
		e.logger.Debug("using stored cv embedding", zap.String("source", entry.Source), zap.Time("created_at", entry.CreatedAt))
		return entry.Vector
	}

	if placeholder, _ := cmd.Flags().GetBool("placeholder"); placeholder {
		e.logger.Warn("no cv embedding stored, matching with a placeholder", zap.String("hint", fmt.Sprintf("run '%s embed cv <file>'", app)))
		return matching.PlaceholderEmbedding()
	}

	e.logger.Fatal("no cv embedding stored",
		zap.String("hint", fmt.Sprintf("run '%s embed cv <file>', pass --query or --placeholder", app)),
	)
	return nil
}

func buildQuery(cmd *cobra.Command, e *env, sess *session.Session) (matching.Query, error) {
	flags := cmd.Flags()

	q := matching.Query{
		Limit:       e.config.Match.Limit,
		Rerank:      e.config.Match.Rerank,
		ExcludeFile: e.config.ExcludeFile,
	}

	if flags.Changed("limit") {
		q.Limit, _ = flags.GetInt("limit")
		if q.Limit <= 0 {
			return q, fmt.Errorf("limit must be positive, got %d", q.Limit)
		}
	}
	if flags.Changed("location") {
		q.Location, _ = flags.GetString("location")
	}
	if flags.Changed("min-salary") {
		floor, _ := flags.GetInt("min-salary")
		q.MinSalary = &floor
	}
	q.ExcludeCompanies, _ = flags.GetStringSlice("exclude-company")

	skip, _ := flags.GetStringSlice("skip-filter")
	for _, name := range skip {
		if !slices.Contains(filtering.StepNames(), name) {
			return q, fmt.Errorf("unknown filter %q, expected one of %s", name, strings.Join(filtering.StepNames(), ", "))
		}
	}
	q.SkipFilters = skip

	if usePrefs, _ := flags.GetBool("use-prefs"); usePrefs {
		store, closeStore := e.store()
		defer closeStore()

		saved, err := preferences.NewForm(store, e.logger).Load(e.ctx, sess)
		if err != nil {
			return q, err
		}
		if !flags.Changed("location") {
			q.Location = saved.Location
		}
		if !flags.Changed("min-salary") && saved.MinSalary > 0 {
			floor := saved.MinSalary
			q.MinSalary = &floor
		}
	}

	return q, nil
}

func printJobs(w io.Writer, found *jobs.Jobs) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MATCH\tTITLE\tCOMPANY\tLOCATION\tSALARY\tURL")
	for _, job := range found.Items {
		fmt.Fprintf(tw, "%s%%\t%s\t%s\t%s\t%s\t%s\n",
			strconv.FormatFloat(job.MatchScore, 'f', -1, 64),
			truncate(job.Title, maxTitleWidth),
			job.Company,
			job.Location,
			job.SalaryRange(),
			job.JobURL,
		)
	}
	tw.Flush()
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}
