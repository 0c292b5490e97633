package cmd

import (
	"context"

	"github.com/spigell/mentor-matcher/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Invite one more mentor to an open mentorship",
	Run: func(cmd *cobra.Command, _ []string) {
		invite(cmd)
	},
}

func init() {
	rootCmd.AddCommand(inviteCmd)

	inviteCmd.Flags().String("mentorship", "", "mentorship id")
	inviteCmd.Flags().String("mentor", "", "uid of the mentor to invite")
	inviteCmd.Flags().String("message", "", "invitation message")

	inviteCmd.MarkFlagRequired("mentorship")
	inviteCmd.MarkFlagRequired("mentor")
}

func invite(cmd *cobra.Command) {
	ctx := context.Background()

	svc := mustSetup(ctx)
	defer svc.Close()

	mentorshipID, _ := cmd.Flags().GetString("mentorship")
	mentorID, _ := cmd.Flags().GetString("mentor")
	message, _ := cmd.Flags().GetString("message")

	id, err := svc.lifecycle.Invite(ctx, mentorshipID, mentorID, message)
	if err != nil {
		svc.logger.Fatal("inviting mentor", append(logger.LifecycleFields(mentorshipID, "", mentorID), zap.Error(err))...)
	}

	if err := printJSON(cmd.OutOrStdout(), map[string]string{"invitationId": id}); err != nil {
		svc.logger.Fatal("printing result", zap.Error(err))
	}
}
