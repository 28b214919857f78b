package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-omegaloops/index"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the local catalog index",
	Long: `Runs a Bleve query string against the index written by 'catalog index',
for example 'drums', '+category:House' or 'artist:larry'.`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringP("query", "q", "", "Search query (required)")
	searchCmd.Flags().Int("limit", 10, "Maximum number of hits")
	_ = searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	limit, _ := cmd.Flags().GetInt("limit")
	if query == "" {
		return errors.New("search query cannot be empty")
	}

	indexPath := globalConfig.BleveIndexPath
	// Open rather than OpenOrCreateIndex so a search never creates an index.
	idx, err := bleve.Open(indexPath)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return fmt.Errorf("no search index at %s, run 'omegaloops catalog index' first", indexPath)
	}
	if err != nil {
		return fmt.Errorf("opening index at %s: %w", indexPath, err)
	}
	defer func() {
		if err := idx.Close(); err != nil {
			log.WithError(err).Error("Error closing index")
		}
	}()

	res, err := index.SearchIndex(idx, query, limit)
	if err != nil {
		return fmt.Errorf("searching %q: %w", query, err)
	}
	log.Debugf("Search finished. Hits: %d, Total: %d, Took: %s", len(res.Hits), res.Total, res.Took)

	out := cmd.OutOrStdout()
	if res.Total == 0 {
		fmt.Fprintln(out, "No results found matching your query.")
		return nil
	}
	for i, hit := range res.Hits {
		fmt.Fprintf(out, "[%d] %s (score %.2f)\n", i+1, hit.ID, hit.Score)
		fields := make([]string, 0, len(hit.Fields))
		for field := range hit.Fields {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Fprintf(out, "  %s: %v\n", field, hit.Fields[field])
		}
	}
	return nil
}
