package cmd

import (
	"context"

	"github.com/spigell/mentor-matcher/internal/lifecycle"
	"github.com/spigell/mentor-matcher/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var mentorshipCmd = &cobra.Command{
	Use:   "mentorship",
	Short: "Create and inspect mentorship requests",
}

var mentorshipCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a mentorship request and invite mentors to it",
	Run: func(cmd *cobra.Command, _ []string) {
		createMentorship(cmd)
	},
}

var mentorshipGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show a mentorship request",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		getMentorship(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(mentorshipCmd)
	mentorshipCmd.AddCommand(mentorshipCreateCmd, mentorshipGetCmd)

	mentorshipCreateCmd.Flags().StringP("mentee", "m", "", "mentee uid")
	mentorshipCreateCmd.Flags().StringSliceP("tech", "t", nil, "technologies the mentee needs help with")
	mentorshipCreateCmd.Flags().StringP("challenge", "c", "", "description of the mentee's challenge")
	mentorshipCreateCmd.Flags().StringSliceP("invite", "i", nil, "uids of mentors to invite")
	mentorshipCreateCmd.Flags().String("message", "", "message sent with every invitation")

	mentorshipCreateCmd.MarkFlagRequired("mentee")
	mentorshipCreateCmd.MarkFlagRequired("tech")
}

func createMentorship(cmd *cobra.Command) {
	ctx := context.Background()

	svc := mustSetup(ctx)
	defer svc.Close()

	req := lifecycle.CreateRequest{}
	req.MenteeID, _ = cmd.Flags().GetString("mentee")
	req.Technologies, _ = cmd.Flags().GetStringSlice("tech")
	req.ChallengeDescription, _ = cmd.Flags().GetString("challenge")
	req.InvitedMentorIDs, _ = cmd.Flags().GetStringSlice("invite")
	req.Message, _ = cmd.Flags().GetString("message")

	created, err := svc.lifecycle.CreateMentorship(ctx, req)
	if err != nil {
		svc.logger.Fatal("creating mentorship", zap.Error(err))
	}

	svc.logger.Info("mentorship created",
		append(logger.LifecycleFields(created.Mentorship.ID, "", ""),
			zap.Int("invitations", len(created.Invitations)))...,
	)

	if err := printJSON(cmd.OutOrStdout(), created); err != nil {
		svc.logger.Fatal("printing result", zap.Error(err))
	}
}

func getMentorship(cmd *cobra.Command, id string) {
	ctx := context.Background()

	svc := mustSetup(ctx)
	defer svc.Close()

	m, err := svc.lifecycle.GetMentorship(ctx, id)
	if err != nil {
		svc.logger.Fatal("getting mentorship", zap.Error(err), zap.String("mentorship_id", id))
	}

	if err := printJSON(cmd.OutOrStdout(), m); err != nil {
		svc.logger.Fatal("printing result", zap.Error(err))
	}
}
