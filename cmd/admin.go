package cmd

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/catalogd/internal/auth"
	"github.com/ziadkadry99/catalogd/internal/config"
)

var (
	adminEmail    string
	adminPassword string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts",
}

var adminPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change an admin's password",
	Long: `Sets a new password for an admin account. Without --password the new
password is read from an interactive prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Mode != config.ModeServer {
			return fmt.Errorf("admin accounts exist only in server mode")
		}

		email := adminEmail
		if email == "" {
			email = cfg.Auth.AdminEmail
		}
		password := adminPassword
		if password == "" {
			prompt := promptui.Prompt{
				Label:    fmt.Sprintf("New password for %s", auth.NormalizeEmail(email)),
				Mask:     '*',
				Validate: config.ValidatePassword,
			}
			if password, err = prompt.Run(); err != nil {
				return fmt.Errorf("password prompt: %w", err)
			}
		} else if err := config.ValidatePassword(password); err != nil {
			return err
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		svc := auth.NewService(
			auth.NewAdminStore(database),
			auth.NewSessionStore(database),
			auth.NewPasswordHasher(cfg.Auth.BcryptCost),
			auth.NewTokenManager(auth.TokenConfig{Secret: cfg.Auth.JWTSecret, TTL: cfg.Auth.TokenTTL}),
		)
		err = svc.ChangePassword(cmd.Context(), email, password)
		if errors.Is(err, auth.ErrAdminNotFound) {
			return fmt.Errorf("no admin with email %s", auth.NormalizeEmail(email))
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", auth.NormalizeEmail(email))
		return nil
	},
}

func init() {
	adminPasswdCmd.Flags().StringVar(&adminEmail, "email", "", "admin email (defaults to auth.admin_email)")
	adminPasswdCmd.Flags().StringVar(&adminPassword, "password", "", "new password (prompted when empty)")
	adminCmd.AddCommand(adminPasswdCmd)
	rootCmd.AddCommand(adminCmd)
}
