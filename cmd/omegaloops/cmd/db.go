package cmd

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"

	"go-omegaloops/internal/database"
	"go-omegaloops/internal/helpers"
	"go-omegaloops/internal/models"
)

// dbCmd represents the base command for upload journal operations
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the local upload journal",
	Long:  `The journal records every file pinned by this machine with its CID and, once registered, its transaction.`,
}

var dbViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View journal entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournalEntries(cmd, "", renderJournal)
	},
}

var dbSearchCmd = &cobra.Command{
	Use:   "search TEXT",
	Short: "Show journal entries whose file name contains TEXT (case-insensitive)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournalEntries(cmd, args[0], renderJournal)
	},
}

var dbDeleteCmd = &cobra.Command{
	Use:   "delete KEY|FINGERPRINT",
	Short: "Remove a journal entry",
	Long:  `Removes a journal entry. The pin itself stays on IPFS.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openJournal()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.DeleteEntry(args[0]); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("no journal entry %s", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbViewCmd, dbSearchCmd, dbDeleteCmd)
}

func withJournalEntries(cmd *cobra.Command, nameQuery string, fn func(*cobra.Command, []models.JournalEntry)) error {
	db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.ListEntries()
	if err != nil {
		return err
	}
	if nameQuery != "" {
		fold := cases.Fold()
		needle := fold.String(nameQuery)
		matched := entries[:0]
		for _, e := range entries {
			if strings.Contains(fold.String(e.FileName), needle) {
				matched = append(matched, e)
			}
		}
		entries = matched
	}
	fn(cmd, entries)
	log.Debugf("Displayed %d journal entries.", len(entries))
	return nil
}

func renderJournal(cmd *cobra.Command, entries []models.JournalEntry) {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No journal entries.")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.UploadedAt.Format("2006-01-02 15:04"),
			e.FileName,
			models.MediaKind(e.MediaType),
			helpers.BytesToSize(uint64(e.Size)),
			e.CID,
			e.TxHash,
			database.JournalKey(e.Fingerprint),
		})
	}
	renderTable(out,
		[]string{"Uploaded", "File", "Kind", "Size", "CID", "Transaction", "Key"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft})
}
