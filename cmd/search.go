package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/search"
)

var (
	searchTenant   string
	searchPage     int
	searchPageSize int
	searchFilters  search.Filters
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for leads matching filter criteria",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Search.Search(ctx, search.Request{
			TenantID: searchTenant,
			Filters:  searchFilters,
			Page:     searchPage,
			PageSize: searchPageSize,
		})
		if err != nil {
			return eris.Wrap(err, "search")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchTenant, "tenant", "", "tenant ID (required)")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "result page")
	searchCmd.Flags().IntVar(&searchPageSize, "page-size", 25, "results per page")
	searchCmd.Flags().StringSliceVar(&searchFilters.Titles, "title", nil, "job title filter (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchFilters.Seniority, "seniority", nil, "seniority filter (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchFilters.Industries, "industry", nil, "industry filter (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchFilters.Locations, "location", nil, "location filter (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchFilters.CompanySizes, "company-size", nil, "company size filter (repeatable)")
	searchCmd.Flags().StringVar(&searchFilters.Keywords, "keywords", "", "free-text keywords")
	_ = searchCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(searchCmd)
}
