package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to catalogd! Let's configure your site.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Mode.
	modePrompt := promptui.Select{
		Label: "Where should the catalog live",
		Items: []string{
			"server - SQLite database with the admin API",
			"local  - a single JSON file, no admin API",
		},
	}
	modeIdx, _, err := modePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("mode selection: %w", err)
	}
	cfg.Mode = []Mode{ModeServer, ModeLocal}[modeIdx]

	// 2. Port.
	portPrompt := promptui.Prompt{
		Label:    "HTTP port",
		Default:  strconv.Itoa(cfg.Server.Port),
		Validate: validatePort,
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	if cfg.Mode == ModeServer {
		// 3. Admin account.
		emailPrompt := promptui.Prompt{
			Label:    "Admin email",
			Default:  cfg.Auth.AdminEmail,
			Validate: validateEmail,
		}
		cfg.Auth.AdminEmail, err = emailPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("admin email: %w", err)
		}

		passwordPrompt := promptui.Prompt{
			Label:    "Admin password",
			Mask:     '*',
			Validate: ValidatePassword,
		}
		cfg.Auth.AdminPassword, err = passwordPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("admin password: %w", err)
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	if cfg.Mode == ModeServer && cfg.Auth.JWTSecret == DevSecret {
		fmt.Printf("Note: set %sAUTH__JWT_SECRET before running in production.\n", EnvPrefix)
	}
	return cfg, nil
}

// ValidatePassword enforces the minimum admin password length.
func ValidatePassword(s string) error {
	if len(s) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return errors.New("port must be a number between 1 and 65535")
	}
	return nil
}

func validateEmail(s string) error {
	if _, err := mail.ParseAddress(s); err != nil {
		return errors.New("enter a valid email address")
	}
	return nil
}
