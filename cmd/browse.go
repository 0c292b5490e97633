package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spigell/mentor-matcher/internal/filtering"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var browseCmd = &cobra.Command{
	Use:   "browse MENTORSHIP_ID",
	Short: "List mentors that could still be invited to a mentorship, best match first",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		browse(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)

	browseCmd.Flags().Int("min-score", 0, "hide mentors scoring below this value (0-99)")
	browseCmd.Flags().Bool("available", false, "only show mentors marked as available")
	browseCmd.Flags().StringP("output", "o", "table", "output format: table or json")
	browseCmd.Flags().StringSlice("skip-filter", nil, "names of filters to turn off (see --filters)")
	browseCmd.Flags().Bool("filters", false, "print the filter pipeline and exit")
}

func browse(cmd *cobra.Command, args []string) {
	minScore, _ := cmd.Flags().GetInt("min-score")
	available, _ := cmd.Flags().GetBool("available")
	skip, _ := cmd.Flags().GetStringSlice("skip-filter")

	cfg := filtering.Config{
		RequireAvailable: available,
		MinimumScore:     minScore,
		Skip:             skip,
	}

	if listFilters, _ := cmd.Flags().GetBool("filters"); listFilters {
		steps, err := filtering.Pipeline(&cfg)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			return
		}
		if err := printJSON(cmd.OutOrStdout(), filtering.Describe(steps)); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
		return
	}

	ctx := context.Background()

	svc := mustSetup(ctx)
	defer svc.Close()

	if len(args) == 0 {
		svc.logger.Fatal("mentorship id is required")
	}

	candidates, err := svc.lifecycle.Candidates(ctx, args[0], cfg)
	if err != nil {
		svc.logger.Fatal("browsing candidates", zap.Error(err), zap.String("mentorship_id", args[0]))
	}

	if output, _ := cmd.Flags().GetString("output"); output == "json" {
		if err := printJSON(cmd.OutOrStdout(), candidates); err != nil {
			svc.logger.Fatal("printing result", zap.Error(err))
		}
		return
	}

	if len(candidates) == 0 {
		svc.logger.Info("exiting", zap.String("reason", "no mentors left after filters"))
		return
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tUID\tNAME\tTECHNOLOGIES\tAVAILABILITY")
	for _, c := range candidates {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			c.Score, c.Mentor.UID, c.Mentor.DisplayName,
			strings.Join(c.Mentor.TechnologyNames(), ", "), c.Mentor.Availability)
	}
	w.Flush()
}
