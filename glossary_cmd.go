package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/minios-linux/proptrans/config"
	"github.com/minios-linux/proptrans/glossary"
	"github.com/minios-linux/proptrans/i18n"
	"github.com/minios-linux/proptrans/lockfile"
)

// ---------------------------------------------------------------------------
// glossary (update / delete / status)
// ---------------------------------------------------------------------------

func newGlossaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "glossary",
		Short: "Manage Cloud Translation glossaries",
		Long: `Manage the per-language glossaries used by the google provider.

A glossary for language <lang> is created from the CSV object
glossary.file_format in google.bucket and named glossary.name_format.

Examples:
  proptrans glossary update fr glossary/fr.csv de glossary/de.csv
  proptrans glossary delete fr de
  proptrans glossary status`,
	}

	cmd.AddCommand(
		newGlossaryUpdateCmd(),
		newGlossaryDeleteCmd(),
		newGlossaryStatusCmd(),
	)
	return cmd
}

// openGlossaries loads the project and connects to the glossary backend.
func openGlossaries(ctx context.Context) (*config.ProjectFile, *backends, error) {
	pf, err := config.Load(rootDir)
	if err != nil {
		return nil, nil, err
	}
	if !pf.GlossaryEnabled() {
		return nil, nil, errors.New("glossaries are disabled or not supported by provider " + pf.Provider)
	}
	b, err := openBackends(ctx, pf, "")
	if err != nil {
		return nil, nil, err
	}
	return pf, b, nil
}

func newGlossaryUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <lang> <csv> [<lang> <csv>...]",
		Short: "Upload glossary CSVs and recreate the glossaries",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return errors.New("expected pairs of <lang> <csv>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pf, b, err := openGlossaries(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			lock, err := lockfile.Load(pf.Root())
			if err != nil {
				return err
			}

			var failed []string
			for i := 0; i < len(args); i += 2 {
				lang, csvPath := args[i], args[i+1]
				res, err := b.glossaries.Update(ctx, b.uploader, lang, csvPath)
				if res.State != glossary.StateSkipped {
					lock.SetGlossary(lang, res.Name, res.State.String())
				}
				if err != nil {
					logError("Updating glossary for %s: %v", lang, err)
					failed = append(failed, lang)
					continue
				}
				if res.State == glossary.StateReady {
					logSuccess("Glossary %s updated", res.Name)
				}
			}
			if err := lock.Save(); err != nil {
				logError("Saving %s: %v", lock.Path(), err)
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d glossary update(s) failed: %s", len(failed), strings.Join(failed, ", "))
			}
			return nil
		},
	}
}

func newGlossaryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <lang>...",
		Short: "Delete glossaries (missing ones are ignored)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, b, err := openGlossaries(ctx)
			if err != nil {
				return err
			}
			defer b.Close()
			return deleteGlossaries(ctx, b, args)
		},
	}
}

// deleteGlossaries deletes the glossary of every language and reports
// the failures together.
func deleteGlossaries(ctx context.Context, b *backends, langs []string) error {
	if b.glossaries == nil {
		return errors.New("glossaries are disabled or not supported by this provider")
	}
	var failed []string
	for _, lang := range langs {
		if err := b.glossaries.Delete(ctx, lang); err != nil {
			logError("%v", err)
			failed = append(failed, lang)
			continue
		}
		logSuccess("Glossary %s deleted", b.glossaries.Name(lang))
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d glossary deletion(s) failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

func newGlossaryStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [lang...]",
		Short: "Show the glossaries of the target languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pf, b, err := openGlossaries(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			langs, err := selectLanguages(pf, args)
			if err != nil {
				return err
			}
			lock, err := lockfile.Load(pf.Root())
			if err != nil {
				return err
			}

			w := langColumnWidth(langs)
			fmt.Fprintf(color.Error, "%-*s  %-10s %-8s %-20s %s\n", w, i18n.T("Lang"), i18n.T("State"), i18n.T("Entries"), i18n.T("Created"), i18n.T("Last run"))
			fmt.Fprintln(color.Error, strings.Repeat("─", w+60))
			for _, lang := range langs {
				state, paint := i18n.T("missing"), yellow
				entries, created := "-", "-"
				g, err := b.glossaries.Get(ctx, lang)
				switch {
				case err == nil:
					state, paint = i18n.T("ready"), green
					entries = fmt.Sprint(g.EntryCount)
					if !g.SubmitTime.IsZero() {
						created = g.SubmitTime.Local().Format("2006-01-02 15:04")
					}
				case glossary.IsNotFound(err):
				default:
					state, paint = i18n.T("error"), red
					logError("%s: %v", lang, err)
				}
				last := "-"
				if rec, ok := lock.Glossary(lang); ok {
					last = strings.ToLower(rec.State)
				}
				fmt.Fprintf(color.Error, "%-*s  %s %-8s %-20s %s\n", w, lang, paint(fmt.Sprintf("%-10s", state)), entries, created, last)
			}
			return nil
		},
	}
}
