package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd.Context(), email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted if omitted)")

	return cmd
}

func newRegisterCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRegister(cmd.Context(), name, email, password)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted if omitted)")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the saved session",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runLogout()
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWhoami()
		},
	}
}

func runLogin(ctx context.Context, email, password string) error {
	a := buildApp()

	email, password, err := promptCredentials(email, password)
	if err != nil {
		return err
	}

	sess, err := a.api.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := a.manager.Login(sess); err != nil {
		return err
	}

	statusf("Signed in as %s.\n", sess.Profile.DisplayName)

	return nil
}

func runRegister(ctx context.Context, name, email, password string) error {
	a := buildApp()

	if name == "" {
		return fmt.Errorf("register: --name is required")
	}

	email, password, err := promptCredentials(email, password)
	if err != nil {
		return err
	}

	sess, err := a.api.Register(ctx, name, email, password)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	if err := a.manager.Login(sess); err != nil {
		return err
	}

	statusf("Account created. Signed in as %s.\n", sess.Profile.DisplayName)

	return nil
}

func runLogout() error {
	a := buildApp()

	if err := a.manager.Logout(); err != nil {
		return err
	}

	statusf("Signed out.\n")

	return nil
}

func runWhoami() error {
	a := buildApp()

	profile := a.manager.CurrentUser()
	if profile == nil {
		return fmt.Errorf("not signed in (run 'taskboard login')")
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(profile)
	}

	fmt.Printf("%s <%s>\n", profile.DisplayName, profile.Email)

	return nil
}

// promptCredentials fills in missing email/password from stdin. Password
// input is echoed; this is a development tool against a local server, not
// a production credential prompt.
func promptCredentials(email, password string) (string, string, error) {
	reader := bufio.NewReader(os.Stdin)

	if email == "" {
		fmt.Fprint(os.Stderr, "Email: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("reading email: %w", err)
		}

		email = strings.TrimSpace(line)
	}

	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("reading password: %w", err)
		}

		password = strings.TrimSpace(line)
	}

	if email == "" || password == "" {
		return "", "", fmt.Errorf("email and password are required")
	}

	return email, password, nil
}
