package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

var enrichReq model.EnrichmentRequest

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run enrichment for a single prospect",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Pool.Submit(ctx, enrichReq); err != nil {
			return eris.Wrap(err, "submit enrichment")
		}
		env.Pool.Wait()

		p, err := env.Store.GetProspect(ctx, enrichReq.TenantID, enrichReq.ProspectID)
		if err != nil {
			return eris.Wrap(err, "load enriched prospect")
		}

		zap.L().Info("enrichment finished",
			zap.String("prospect_id", p.ID),
			zap.String("status", string(p.EnrichmentStatus)),
			zap.Any("sources", p.Sources),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichReq.ProspectID, "id", "", "prospect ID (required)")
	enrichCmd.Flags().StringVar(&enrichReq.TenantID, "tenant", "", "tenant ID (required)")
	enrichCmd.Flags().StringVar(&enrichReq.UserID, "user", "", "acting user ID")
	enrichCmd.Flags().StringVar(&enrichReq.Name, "name", "", "prospect full name")
	enrichCmd.Flags().StringVar(&enrichReq.Company, "company", "", "company name")
	enrichCmd.Flags().StringVar(&enrichReq.Title, "title", "", "job title")
	enrichCmd.Flags().StringVar(&enrichReq.Email, "email", "", "known email address")
	enrichCmd.Flags().StringVar(&enrichReq.LinkedInURL, "linkedin", "", "LinkedIn profile URL")
	enrichCmd.Flags().BoolVar(&enrichReq.IsPublicCompany, "public", false, "company is publicly traded")
	enrichCmd.Flags().StringVar(&enrichReq.RegistryID, "cik", "", "SEC CIK for public companies")
	_ = enrichCmd.MarkFlagRequired("id")
	_ = enrichCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(enrichCmd)
}
