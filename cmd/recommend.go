package cmd

import (
	"context"

	"github.com/spigell/mentor-matcher/internal/recommend"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend mentors for a mentee's challenge",
	Run: func(cmd *cobra.Command, _ []string) {
		runRecommend(cmd)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("mentee", "m", "", "mentee uid")
	recommendCmd.Flags().StringSliceP("tech", "t", nil, "technologies the mentee needs help with")
	recommendCmd.Flags().StringP("challenge", "c", "", "description of the mentee's challenge")

	recommendCmd.MarkFlagRequired("tech")
	recommendCmd.MarkFlagRequired("challenge")
}

func runRecommend(cmd *cobra.Command) {
	ctx := context.Background()

	svc := mustSetup(ctx)
	defer svc.Close()

	mentee, _ := cmd.Flags().GetString("mentee")
	techs, _ := cmd.Flags().GetStringSlice("tech")
	challenge, _ := cmd.Flags().GetString("challenge")

	result, err := svc.recommend.Recommend(ctx, recommend.Request{
		MenteeID:             mentee,
		Technologies:         techs,
		ChallengeDescription: challenge,
	})
	if err != nil {
		svc.logger.Fatal("recommending mentors", zap.Error(err))
	}

	if result.Fallback {
		svc.logger.Warn("model ranking was not used", zap.String("reason", "falling back to search order"))
	}

	if err := printJSON(cmd.OutOrStdout(), result); err != nil {
		svc.logger.Fatal("printing result", zap.Error(err))
	}
}
