package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/frontdesk/internal/catalog"
	"github.com/MikeSquared-Agency/frontdesk/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import RULES_FILE",
	Short: "Load a rules YAML file into Postgres (DATABASE_URL)",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read rules file: %w", err)
	}
	snaps, err := catalog.Parse(data)
	if err != nil {
		return err
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	db, err := store.New(cmd.Context(), dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ids := make([]string, 0, len(snaps))
	for id := range snaps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		snap := snaps[id]
		if err := db.SaveCompany(cmd.Context(), snap); err != nil {
			return fmt.Errorf("import %s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d cards)\n", id, len(snap.Cards))
	}
	return nil
}
