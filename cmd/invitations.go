package cmd

import (
	"context"

	"github.com/spigell/mentor-matcher/internal/directory"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var invitationsCmd = &cobra.Command{
	Use:   "invitations MENTOR_ID",
	Short: "List invitations sent to a mentor",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		listInvitations(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(invitationsCmd)

	invitationsCmd.Flags().String("status", "", "only show invitations with this status: pending, accepted or declined")
}

func listInvitations(cmd *cobra.Command, mentorID string) {
	ctx := context.Background()

	svc := mustSetup(ctx)
	defer svc.Close()

	status, _ := cmd.Flags().GetString("status")

	invitations, err := svc.lifecycle.ListInvitations(ctx, mentorID, directory.InvitationStatus(status))
	if err != nil {
		svc.logger.Fatal("listing invitations", zap.Error(err), zap.String("mentor_id", mentorID))
	}

	svc.logger.Info("found invitations", zap.Int("count", len(invitations)))

	if err := printJSON(cmd.OutOrStdout(), invitations); err != nil {
		svc.logger.Fatal("printing result", zap.Error(err))
	}
}
