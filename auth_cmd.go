package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/minios-linux/proptrans/config"
	"github.com/minios-linux/proptrans/i18n"
	"github.com/minios-linux/proptrans/settings"
)

// ---------------------------------------------------------------------------
// auth (login / logout / list)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage translator API keys",
		Long: `Manage API keys of HTTP translators.

The google provider uses application default credentials
(GOOGLE_APPLICATION_CREDENTIALS) and stores nothing here.

Examples:
  proptrans auth login                  Store a LibreTranslate API key
  proptrans auth logout                 Remove all stored keys
  proptrans auth list                   Show stored keys`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var provider, baseURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider != config.ProviderLibreTranslate {
				return fmt.Errorf("provider %q does not take an API key", provider)
			}
			return authLoginAPIKey(provider, baseURL, os.Stdin)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", config.ProviderLibreTranslate, "Provider to store the key for")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL to remember with the key")
	return cmd
}

func authLoginAPIKey(providerID, baseURL string, in io.Reader) error {
	existing := settings.GetAPIKey(providerID)
	if existing != "" {
		fmt.Fprintf(color.Error, "  %s\n", i18n.Tf("Current key: %s", yellow(settings.MaskKey(existing))))
		fmt.Fprintf(color.Error, "  %s ", i18n.T("Enter new key to replace, or press Enter to keep:"))
	} else {
		fmt.Fprintf(color.Error, "  %s ", i18n.T("Enter API key:"))
	}

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return errors.New("no input received")
	}
	key := strings.TrimSpace(scanner.Text())

	if key == "" {
		if existing != "" {
			logInfo("Keeping existing key")
			return nil
		}
		return errors.New("no API key provided")
	}

	if baseURL == "" {
		baseURL = settings.GetBaseURL(providerID)
	}
	if err := settings.SetAPIKey(providerID, key, baseURL); err != nil {
		return fmt.Errorf("saving API key: %w", err)
	}
	logSuccess("%s API key saved to %s", providerID, settings.FilePath())
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("All stored credentials removed")
				return nil
			}
			if err := settings.Remove(provider); err != nil {
				return err
			}
			logSuccess("Credentials for %s removed", provider)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider to log out from (default: all)")
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(color.Error, "\n%s\n", cyan(i18n.T("Stored Credentials")))
			fmt.Fprintln(color.Error, strings.Repeat("─", 60))

			entry := settings.Get(config.ProviderLibreTranslate)
			if entry != nil && entry.Key != "" {
				status := fmt.Sprintf("%s (%s)", green(i18n.T("configured")), i18n.Tf("key: %s", settings.MaskKey(entry.Key)))
				if entry.BaseURL != "" {
					status += fmt.Sprintf("\n  %14s %s", "", i18n.Tf("endpoint: %s", entry.BaseURL))
				}
				fmt.Fprintf(color.Error, "  %-14s %s\n", config.ProviderLibreTranslate, status)
			} else {
				fmt.Fprintf(color.Error, "  %-14s %s\n", config.ProviderLibreTranslate, red(i18n.T("not configured")))
			}

			fmt.Fprintf(color.Error, "\n  %s\n", yellow(i18n.T("Environment Variables")))
			for _, name := range []string{settings.EnvVarForProvider(config.ProviderLibreTranslate), "GOOGLE_APPLICATION_CREDENTIALS"} {
				v := os.Getenv(name)
				switch {
				case v == "":
					fmt.Fprintf(color.Error, "  %s: %s\n", name, red(i18n.T("not set")))
				case strings.HasPrefix(name, "GOOGLE_"):
					fmt.Fprintf(color.Error, "  %s: %s\n", name, green(v))
				default:
					fmt.Fprintf(color.Error, "  %s: %s (%s)\n", name, green(settings.MaskKey(v)), i18n.T("overrides stored key"))
				}
			}
			fmt.Fprintln(color.Error)
		},
	}
}
