package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/logger"
	"github.com/spigell/joblens/internal/session"
	"github.com/spigell/joblens/internal/supabase"
)

const minPasswordLength = 6

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session locally",
	Run: func(cmd *cobra.Command, _ []string) {
		login(cmd)
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Run: func(cmd *cobra.Command, _ []string) {
		signup(cmd)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the local session",
	Run: func(_ *cobra.Command, _ []string) {
		logout()
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed in account",
	Run: func(cmd *cobra.Command, _ []string) {
		whoami(cmd)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().StringP("email", "e", "", "account email (asked interactively when empty)")

	signupCmd.Flags().StringP("email", "e", "", "account email (asked interactively when empty)")
	signupCmd.Flags().StringP("name", "n", "", "full name")

	whoamiCmd.Flags().String("set-name", "", "update the full name of the account")
}

func login(cmd *cobra.Command) {
	e := newEnv()
	client := e.supabase()

	email, err := promptEmail(cmd)
	if err != nil {
		e.logger.Fatal("reading email", zap.Error(err))
	}

	password, err := promptPassword()
	if err != nil {
		e.logger.Fatal("reading password", zap.Error(err))
	}

	sess, err := client.SignIn(e.ctx, email, password)
	if err != nil {
		e.logger.Fatal("signing in", zap.Error(err))
	}

	if err := session.Save(e.sessionFile(), sess); err != nil {
		e.logger.Fatal("saving session", zap.Error(err))
	}

	e.logger.Info("signed in", zap.String("email", sess.Email), zap.String("session_file", e.sessionFile()))
}

func signup(cmd *cobra.Command) {
	e := newEnv()
	client := e.supabase()

	email, err := promptEmail(cmd)
	if err != nil {
		e.logger.Fatal("reading email", zap.Error(err))
	}

	password, err := promptPassword()
	if err != nil {
		e.logger.Fatal("reading password", zap.Error(err))
	}

	name, _ := cmd.Flags().GetString("name")

	sess, err := client.SignUp(e.ctx, email, password, strings.TrimSpace(name))
	if errors.Is(err, supabase.ErrConfirmationRequired) {
		e.logger.Info("account created", zap.String("email", email), zap.String("next", "confirm the email address, then run login"))
		return
	}
	if err != nil {
		e.logger.Fatal("signing up", zap.Error(err))
	}

	if err := session.Save(e.sessionFile(), sess); err != nil {
		e.logger.Fatal("saving session", zap.Error(err))
	}

	e.logger.Info("account created and signed in", zap.String("email", email))
}

func logout() {
	e := newEnv()

	sess, err := session.Load(e.sessionFile())
	if err != nil {
		e.logger.Fatal("loading session", zap.Error(err))
	}

	// An expired or missing session only needs the local file removed.
	if sess.Require() == nil {
		if err := e.supabase().SignOut(e.ctx, sess); err != nil {
			e.logger.Warn("server side sign out failed", zap.Error(err))
		}
	}

	if err := session.Remove(e.sessionFile()); err != nil {
		e.logger.Fatal("removing session", zap.Error(err))
	}

	e.logger.Info("signed out")
}

func whoami(cmd *cobra.Command) {
	e := newEnv()
	sess := e.session()
	client := e.supabase()

	user, err := client.User(e.ctx, sess)
	if err != nil {
		e.logger.Fatal("getting account", zap.Error(err))
	}

	if name, _ := cmd.Flags().GetString("set-name"); strings.TrimSpace(name) != "" {
		user, err = client.UpdateUser(e.ctx, sess, map[string]any{"full_name": strings.TrimSpace(name)})
		if err != nil {
			e.logger.Fatal("updating account", zap.Error(err))
		}
	}

	e.logger.Info("signed in",
		logger.UserField(user.ID),
		zap.String("email", user.Email),
		zap.String("full_name", user.FullName()),
		zap.Time("session_expires_at", sess.ExpiresAt),
	)
}

func promptEmail(cmd *cobra.Command) (string, error) {
	email, _ := cmd.Flags().GetString("email")
	if email = strings.TrimSpace(email); email != "" {
		return email, nil
	}

	prompt := promptui.Prompt{
		Label: "Email",
		Validate: func(s string) error {
			if !strings.Contains(s, "@") {
				return errors.New("not an email address")
			}
			return nil
		},
	}

	email, err := prompt.Run()
	return strings.TrimSpace(email), err
}

func promptPassword() (string, error) {
	prompt := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
		Validate: func(s string) error {
			if len(s) < minPasswordLength {
				return fmt.Errorf("at least %d characters", minPasswordLength)
			}
			return nil
		},
	}

	return prompt.Run()
}
