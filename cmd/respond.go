package cmd

import (
	"context"

	"github.com/spigell/mentor-matcher/internal/lifecycle"
	"github.com/spigell/mentor-matcher/internal/logger"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var decisionPrompt = promptui.Select{
	Label: "Accept the invitation?",
	Items: []string{string(lifecycle.DecisionAccept), string(lifecycle.DecisionDecline)},
}

var respondCmd = &cobra.Command{
	Use:   "respond INVITATION_ID",
	Short: "Accept or decline an invitation as the invited mentor",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		respond(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(respondCmd)

	respondCmd.Flags().String("mentor", "", "uid of the responding mentor")
	respondCmd.Flags().String("decision", "", "accept or decline (asked interactively when omitted)")

	respondCmd.MarkFlagRequired("mentor")
}

func respond(cmd *cobra.Command, invitationID string) {
	ctx := context.Background()

	svc := mustSetup(ctx)
	defer svc.Close()

	mentorID, _ := cmd.Flags().GetString("mentor")
	raw, _ := cmd.Flags().GetString("decision")

	if raw == "" {
		var err error
		_, raw, err = decisionPrompt.Run()
		if err != nil {
			svc.logger.Fatal("exiting", zap.Error(err))
		}
	}

	decision, err := lifecycle.ParseDecision(raw)
	if err != nil {
		svc.logger.Fatal("parsing decision", zap.Error(err))
	}

	outcome, err := svc.lifecycle.Respond(ctx, invitationID, decision, mentorID)
	if err != nil {
		svc.logger.Fatal("responding to invitation",
			append(logger.LifecycleFields("", invitationID, mentorID), zap.Error(err))...)
	}

	if err := printJSON(cmd.OutOrStdout(), outcome); err != nil {
		svc.logger.Fatal("printing result", zap.Error(err))
	}
}
