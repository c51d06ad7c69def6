package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/perkly/perkly/internal/domain"
)

// ─── rules ──────────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesCreateCmd)

	rulesCreateCmd.Flags().Float64("earn-rate", 0.01, "Points per currency minor unit")
	rulesCreateCmd.Flags().String("round", "floor", "Earning round mode: floor, round, or ceil")
	rulesCreateCmd.Flags().Int64("redemption-rate", 100, "Minor units of discount per point")
	rulesCreateCmd.Flags().Int("max-redemption-percent", 50, "Cap on order fraction payable by points")
	rulesCreateCmd.Flags().Int64("min-redemption-points", 50, "Minimum points per redemption")
	rulesCreateCmd.Flags().Bool("allow-downgrade", false, "Allow tier downgrades")
	rulesCreateCmd.Flags().String("basis", "lifetime_points", "Tier evaluation basis: lifetime_points or total_spend")
	rulesCreateCmd.Flags().String("notes", "", "Version notes")
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage loyalty rule versions",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rule versions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			RuleVersions []domain.RuleVersion `json:"rule_versions"`
		}
		if err := apiGet("/v1/admin/rules", &out); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tACTIVE\tEARN RATE\tROUND\tREDEEM RATE\tCAP %\tMIN PTS\tEFFECTIVE FROM\tEFFECTIVE TO")
		for _, rv := range out.RuleVersions {
			to := "-"
			if rv.EffectiveTo != nil {
				to = rv.EffectiveTo.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%d\t%v\t%g\t%s\t%d\t%d\t%d\t%s\t%s\n",
				rv.ID, rv.IsActive, rv.PointsPerCurrency, rv.EarningRoundMode,
				rv.RedemptionRate, rv.MaxRedemptionPercent, rv.MinRedemptionPoints,
				rv.EffectiveFrom.Format(time.RFC3339), to)
		}
		return w.Flush()
	},
}

var rulesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new active rule version",
	Long: `Create a new active rule version. The currently active version is
closed at the new version's effective_from — versions are never edited.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		earnRate, _ := cmd.Flags().GetFloat64("earn-rate")
		round, _ := cmd.Flags().GetString("round")
		redeemRate, _ := cmd.Flags().GetInt64("redemption-rate")
		maxPct, _ := cmd.Flags().GetInt("max-redemption-percent")
		minPts, _ := cmd.Flags().GetInt64("min-redemption-points")
		downgrade, _ := cmd.Flags().GetBool("allow-downgrade")
		basis, _ := cmd.Flags().GetString("basis")
		notes, _ := cmd.Flags().GetString("notes")

		body := map[string]interface{}{
			"points_per_currency":    earnRate,
			"earning_round_mode":     round,
			"redemption_rate":        redeemRate,
			"max_redemption_percent": maxPct,
			"min_redemption_points":  minPts,
			"allow_tier_downgrade":   downgrade,
			"tier_evaluation_basis":  basis,
			"is_active":              true,
			"notes":                  notes,
		}
		var created domain.RuleVersion
		if err := apiPost("/v1/admin/rules", body, &created); err != nil {
			return err
		}
		fmt.Printf("created rule version %d (effective from %s)\n",
			created.ID, created.EffectiveFrom.Format(time.RFC3339))
		return nil
	},
}

// ─── tiers ──────────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(tiersCmd)
	tiersCmd.AddCommand(tiersListCmd)
}

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Manage the tier catalog",
}

var tiersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tier ladder",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Tiers []domain.Tier `json:"tiers"`
		}
		if err := apiGet("/v1/admin/tiers", &out); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tNAME\tORDER\tMIN POINTS\tMULTIPLIER\tACTIVE")
		for _, t := range out.Tiers {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%g\t%v\n",
				t.Code, t.Name, t.DisplayOrder, t.MinPoints, t.PointsMultiplier, t.IsActive)
		}
		return w.Flush()
	},
}

// ─── stats ──────────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show program-wide statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats domain.ProgramStats
		if err := apiGet("/v1/stats", &stats); err != nil {
			return err
		}

		fmt.Printf("Members:            %d\n", stats.TotalMembers)
		fmt.Printf("Points issued:      %d\n", stats.PointsIssuedTotal)
		fmt.Printf("Points redeemed:    %d\n", stats.PointsRedeemedTotal)
		fmt.Printf("Points outstanding: %d\n", stats.PointsOutstanding)
		fmt.Printf("Recent transactions (24h): %d\n", stats.RecentTransactions)
		if len(stats.MembersByTier) > 0 {
			fmt.Println("Members by tier:")
			for code, n := range stats.MembersByTier {
				fmt.Printf("  %-10s %d\n", code, n)
			}
		}
		return nil
	},
}
