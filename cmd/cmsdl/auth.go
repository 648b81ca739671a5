package main

import (
	"context"
	"errors"
	"fmt"

	"cmsdl/pkg/auth"
	"cmsdl/pkg/logger"
	"cmsdl/pkg/portal"
	"cmsdl/pkg/ui"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored portal credentials",
	Long: `Manage the GUC username and password used to log into the CMS.

Credentials are kept in one of these backends (credentials.backend):
  - file       plain two-line file, the default (.cms_credentials)
  - keyring    system keychain
  - encrypted  AES-GCM file with a PBKDF2 derived key
  - env        CMSDL_USERNAME and CMSDL_PASSWORD, read only`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify and store credentials",
	Long: `Prompt for a username and password, check them against the portal and
store them only if the portal accepts them.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which credentials are stored",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := auth.NewStore(cfg.Credentials)
	if err != nil {
		return err
	}

	ctx := context.Background()
	creds, err := auth.NewTerminalPrompter().Prompt(ctx)
	if err != nil {
		return err
	}

	session, err := portal.NewSession(cfg, creds, logger.GetLogger())
	if err != nil {
		return err
	}
	if err := session.Authenticate(ctx); err != nil {
		return fmt.Errorf("portal rejected the credentials: %w", err)
	}

	if err := store.Save(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	ui.PrintSuccess(fmt.Sprintf("Logged in as %s (stored in %s)", creds.Username, store.Name()))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := auth.NewStore(cfg.Credentials)
	if err != nil {
		return err
	}

	err = store.Delete()
	switch {
	case errors.Is(err, auth.ErrCredentialsNotFound):
		ui.PrintWarning("No stored credentials", store.Name())
		return nil
	case err != nil:
		return err
	}
	ui.PrintSuccess("Credentials removed from " + store.Name())
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := auth.NewStore(cfg.Credentials)
	if err != nil {
		return err
	}

	ui.PrintInfo("Backend", store.Name())
	creds, err := store.Load()
	if errors.Is(err, auth.ErrCredentialsNotFound) {
		ui.PrintWarning("No stored credentials", "run 'cmsdl auth login'")
		return nil
	}
	if err != nil {
		return err
	}
	ui.PrintInfo("Account", creds.String())
	return nil
}
