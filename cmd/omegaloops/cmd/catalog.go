package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-omegaloops/index"
	"go-omegaloops/internal/catalog"
	"go-omegaloops/internal/helpers"
	"go-omegaloops/internal/models"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the marketplace catalog rebuilt from the contract",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every sample on the marketplace",
	Long: `Reads the SampleCreated events of the marketplace contract, loads each
sample's details and prints the joined catalog. The listing is all or
nothing: when any detail read fails, nothing is printed.`,
	Args: cobra.NoArgs,
	RunE: runCatalogList,
}

var catalogCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the categories that have at least one sample",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := fetchCatalog(cmd)
		if err != nil {
			return err
		}
		distinct := catalog.DistinctCategories(items)
		names := make([]string, 0, len(distinct))
		for name := range distinct {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var catalogIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the local search index from the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := fetchCatalog(cmd)
		if err != nil {
			return err
		}
		idx, err := index.RebuildIndex(globalConfig.BleveIndexPath, items, globalConfig.GatewayUrl)
		if err != nil {
			return err
		}
		defer idx.Close()
		log.Infof("Indexed %d samples into %s", len(items), globalConfig.BleveIndexPath)
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d samples\n", len(items))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd, catalogCategoriesCmd, catalogIndexCmd)

	catalogListCmd.Flags().StringP("query", "q", "", "Only show samples whose title, artist or description contains this text")
	catalogListCmd.Flags().String("category", "", "Only show samples of this exact category")
	catalogListCmd.Flags().Bool("json", false, "Print the catalog as JSON")
}

// fetchCatalog builds one catalog snapshot from the configured ledger.
func fetchCatalog(cmd *cobra.Command) ([]models.CatalogItem, error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	l, closeLedger, err := ledgerDialer(ctx, globalConfig)
	if err != nil {
		return nil, err
	}
	defer closeLedger()

	syncer := catalog.NewSyncer(catalog.New(l, catalog.Options{
		FromBlock:   globalConfig.FromBlock,
		Concurrency: globalConfig.Concurrency,
	}))
	defer syncer.Close()

	snap, err := syncer.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	log.Debugf("Catalog snapshot %d with %d samples", snap.Generation, len(snap.Items))
	return snap.Items, nil
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	asJSON, _ := cmd.Flags().GetBool("json")
	var category *string
	if cmd.Flags().Changed("category") {
		c, _ := cmd.Flags().GetString("category")
		category = &c
	}

	items, err := fetchCatalog(cmd)
	if err != nil {
		return err
	}
	items = catalog.FilterByCategory(catalog.Search(items, query), category)

	out := cmd.OutOrStdout()
	if asJSON {
		docs := make([]index.Item, 0, len(items))
		for _, it := range items {
			docs = append(docs, index.ItemFromCatalog(it, globalConfig.GatewayUrl))
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	}

	if len(items) == 0 {
		fmt.Fprintln(out, "No samples found.")
		return nil
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			strconv.FormatUint(it.ID, 10),
			it.Title,
			it.Artist,
			it.Category,
			strconv.FormatUint(it.NumberOfCopies, 10),
			helpers.FormatWei(it.Price) + " ETH",
			it.CID,
		})
	}
	renderTable(out,
		[]string{"ID", "Title", "Artist", "Category", "Copies", "Price", "CID"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft})
	return nil
}
