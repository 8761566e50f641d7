package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/preferences"
)

const (
	PromptLocation   = "Location"
	PromptRemote     = "Remote work"
	PromptJobTypes   = "Job types"
	PromptMinSalary  = "Minimum salary"
	PromptIndustries = "Industries"
	PromptExperience = "Experience level"
	PromptSave       = "Save"
	PromptDiscard    = "Discard and exit"
	PromptBack       = "back"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change your job preferences",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the saved preferences as JSON",
	Run: func(cmd *cobra.Command, _ []string) {
		prefsGet(cmd)
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change preferences from flags or a JSON file",
	Run: func(cmd *cobra.Command, _ []string) {
		prefsSet(cmd)
	},
}

var prefsEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit preferences interactively",
	Run: func(_ *cobra.Command, _ []string) {
		prefsEdit()
	},
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsGetCmd, prefsSetCmd, prefsEditCmd)

	addPrefsFlags(prefsSetCmd)
}

func addPrefsFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("file", "f", "", "JSON document with the preferences (fields left out keep their default)")
	flags.String("location", "", "preferred location")
	flags.String("remote", "", "remote work: any, only or no")
	flags.StringSlice("job-type", nil, "job types, replaces the saved list")
	flags.StringSlice("industry", nil, "industries, replaces the saved list")
	flags.Int("min-salary", 0, "minimum salary")
	flags.String("experience", "", "experience level: entry, mid, senior or executive")
}

func prefsGet(cmd *cobra.Command) {
	e := newEnv()
	sess := e.session()
	store, closeStore := e.store()
	defer closeStore()

	form := preferences.NewForm(store, e.logger)
	current, err := form.Load(e.ctx, sess)
	if err != nil {
		e.logger.Fatal("loading preferences", zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(current, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(pretty))

	if !form.Saved() {
		e.logger.Info("showing defaults", zap.String("reason", "no saved preferences"))
	}
}

func prefsSet(cmd *cobra.Command) {
	e := newEnv()
	sess := e.session()
	store, closeStore := e.store()
	defer closeStore()

	form := preferences.NewForm(store, e.logger)

	var next preferences.Preferences
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			e.logger.Fatal("reading preferences file", zap.Error(err))
		}
		next, err = preferences.DecodeJSON(data)
		if err != nil {
			e.logger.Fatal("parsing preferences file", zap.String("file", file), zap.Error(err))
		}
	} else {
		current, err := form.Load(e.ctx, sess)
		if err != nil {
			e.logger.Fatal("loading preferences", zap.Error(err))
		}
		if err := form.LoadError(); err != nil {
			e.logger.Fatal("refusing a partial update over unread preferences",
				zap.Error(err),
				zap.String("hint", "retry later, or pass --file to replace every field"),
			)
		}
		next, err = applyPrefsFlags(cmd, current)
		if err != nil {
			e.logger.Fatal("invalid flag", zap.Error(err))
		}
	}

	if err := form.Save(e.ctx, sess, next); err != nil {
		e.logger.Fatal("saving preferences", zap.Error(err))
	}

	e.logger.Info("preferences saved")
}

// applyPrefsFlags overrides p with the flags the user actually set.
func applyPrefsFlags(cmd *cobra.Command, p preferences.Preferences) (preferences.Preferences, error) {
	flags := cmd.Flags()

	if flags.Changed("location") {
		p.Location, _ = flags.GetString("location")
	}
	if flags.Changed("remote") {
		raw, _ := flags.GetString("remote")
		remote, err := preferences.ParseRemotePreference(raw)
		if err != nil {
			return p, err
		}
		p.RemotePreference = remote
	}
	if flags.Changed("job-type") {
		p.JobTypes, _ = flags.GetStringSlice("job-type")
	}
	if flags.Changed("industry") {
		p.Industries, _ = flags.GetStringSlice("industry")
	}
	if flags.Changed("min-salary") {
		p.MinSalary, _ = flags.GetInt("min-salary")
	}
	if flags.Changed("experience") {
		raw, _ := flags.GetString("experience")
		level, err := preferences.ParseExperienceLevel(raw)
		if err != nil {
			return p, err
		}
		p.ExperienceLevel = level
	}

	return p, nil
}

func prefsEdit() {
	e := newEnv()
	sess := e.session()
	store, closeStore := e.store()
	defer closeStore()

	form := preferences.NewForm(store, e.logger)
	draft, err := form.Load(e.ctx, sess)
	if err != nil {
		e.logger.Fatal("loading preferences", zap.Error(err))
	}
	if err := form.LoadError(); err != nil {
		e.logger.Fatal("stored preferences could not be read", zap.Error(err), zap.String("hint", "retry later"))
	}

	for {
		menu := promptui.Select{
			Label: "Preferences",
			Items: []string{
				fmt.Sprintf("%s: %s", PromptLocation, orDash(draft.Location)),
				fmt.Sprintf("%s: %s", PromptRemote, draft.RemotePreference),
				fmt.Sprintf("%s: %s", PromptJobTypes, orDash(strings.Join(draft.JobTypes, ", "))),
				fmt.Sprintf("%s: %d", PromptMinSalary, draft.MinSalary),
				fmt.Sprintf("%s: %s", PromptIndustries, orDash(strings.Join(draft.Industries, ", "))),
				fmt.Sprintf("%s: %s", PromptExperience, draft.ExperienceLevel),
				PromptSave,
				PromptDiscard,
			},
			Size: 8,
		}

		_, selected, err := menu.Run()
		if err != nil {
			e.logger.Fatal("exiting", zap.Error(err))
		}

		field, _, _ := strings.Cut(selected, ":")
		switch field {
		case PromptSave:
			if draft.Equal(form.Current()) && form.Saved() {
				e.logger.Info("nothing changed")
				return
			}
			if err := form.Save(e.ctx, sess, draft); err != nil {
				// The draft survives a failed save, so the user can retry.
				e.logger.Error("saving preferences failed", zap.Error(err))
				continue
			}
			e.logger.Info("preferences saved")
			return
		case PromptDiscard:
			e.logger.Info("exiting", zap.String("reason", "changes discarded"))
			return
		default:
			draft, err = editField(field, draft)
			if err != nil {
				e.logger.Fatal("exiting", zap.Error(err))
			}
		}
	}
}

func editField(field string, p preferences.Preferences) (preferences.Preferences, error) {
	switch field {
	case PromptLocation:
		prompt := promptui.Prompt{Label: PromptLocation, Default: p.Location, AllowEdit: true}
		value, err := prompt.Run()
		if err != nil {
			return p, err
		}
		p.Location = strings.TrimSpace(value)
	case PromptRemote:
		items := preferences.RemotePreferences()
		sel := promptui.Select{Label: PromptRemote, Items: items, CursorPos: slices.Index(items, p.RemotePreference)}
		i, _, err := sel.Run()
		if err != nil {
			return p, err
		}
		p.RemotePreference = items[i]
	case PromptExperience:
		items := preferences.ExperienceLevels()
		sel := promptui.Select{Label: PromptExperience, Items: items, CursorPos: slices.Index(items, p.ExperienceLevel)}
		i, _, err := sel.Run()
		if err != nil {
			return p, err
		}
		p.ExperienceLevel = items[i]
	case PromptMinSalary:
		prompt := promptui.Prompt{
			Label:   PromptMinSalary,
			Default: strconv.Itoa(p.MinSalary),
			Validate: func(s string) error {
				n, err := strconv.Atoi(strings.TrimSpace(s))
				if err != nil {
					return errors.New("not a number")
				}
				if n < 0 {
					return errors.New("must not be negative")
				}
				return nil
			},
		}
		value, err := prompt.Run()
		if err != nil {
			return p, err
		}
		p.MinSalary, _ = strconv.Atoi(strings.TrimSpace(value))
	case PromptJobTypes:
		set, err := toggleLoop(PromptJobTypes, preferences.JobTypeOptions, p.JobTypes)
		if err != nil {
			return p, err
		}
		p.JobTypes = set
	case PromptIndustries:
		set, err := toggleLoop(PromptIndustries, preferences.IndustryOptions, p.Industries)
		if err != nil {
			return p, err
		}
		p.Industries = set
	}

	return p, nil
}

// toggleLoop behaves like a group of checkboxes: each selection flips one option.
func toggleLoop(label string, options, set []string) ([]string, error) {
	for {
		items := make([]string, 0, len(options)+1)
		for _, o := range options {
			mark := "[ ]"
			if slices.Contains(set, o) {
				mark = "[x]"
			}
			items = append(items, mark+" "+o)
		}
		items = append(items, PromptBack)

		sel := promptui.Select{Label: label, Items: items, Size: len(items)}
		i, selected, err := sel.Run()
		if err != nil {
			return set, err
		}
		if selected == PromptBack {
			return set, nil
		}

		set = preferences.Toggle(set, options[i])
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
