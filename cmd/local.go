package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/catalogd/internal/catalog"
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Inspect and edit the local catalog file",
	Long: `Commands that operate on the local-mode catalog (data_dir/catalog.json).
Writes are announced to running servers when sync.backend is redis; otherwise
the servers notice them on their next poll.`,
}

var localShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the services in the local catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store := newLocalStore(cfg, nil)
		services := store.Read(cmd.Context())

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTATUS")
		for _, card := range catalog.NormalizeAll(services) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", card.ID, card.Name, card.Category, card.Price, card.Status)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if marker := store.LastUpdated(); marker != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "\nlast updated: %s\n", marker)
		}
		return nil
	},
}

var localPutCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Add or replace one service from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		var svc catalog.Service
		if err := json.Unmarshal(data, &svc); err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}
		if svc, err = catalog.Prepare(svc); err != nil {
			return err
		}

		announcer, closeFn := newAnnouncer(cfg)
		defer closeFn()
		saved, err := newLocalStore(cfg, announcer).Put(cmd.Context(), svc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %q as %s\n", saved.Name, saved.ID)
		return nil
	},
}

var localRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a service from the local catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		announcer, closeFn := newAnnouncer(cfg)
		defer closeFn()

		err = newLocalStore(cfg, announcer).Remove(cmd.Context(), args[0])
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("no service with id %s", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

func init() {
	localCmd.AddCommand(localShowCmd, localPutCmd, localRemoveCmd)
	rootCmd.AddCommand(localCmd)
}
