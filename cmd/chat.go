package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/mentor-matcher/internal/chat"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const chatExitWord = "exit"

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the mentorship assistant",
	Run: func(cmd *cobra.Command, _ []string) {
		runChat(cmd)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().BoolP("show-steps", "s", false, "print the thinking steps behind every answer")
}

func runChat(cmd *cobra.Command) {
	ctx := context.Background()

	svc := mustSetup(ctx)
	defer svc.Close()

	showSteps, _ := cmd.Flags().GetBool("show-steps")
	out := cmd.OutOrStdout()

	prompt := promptui.Prompt{
		Label: fmt.Sprintf("You (%q to quit)", chatExitWord),
	}

	history := make([]chat.Message, 0)
	for {
		message, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			svc.logger.Fatal("reading a message", zap.Error(err))
		}

		message = strings.TrimSpace(message)
		if message == "" {
			continue
		}
		if strings.EqualFold(message, chatExitWord) {
			return
		}

		resp := svc.chat.Respond(ctx, chat.Request{Message: message, History: history})

		if showSteps {
			for _, step := range resp.ThinkingSteps {
				fmt.Fprintf(out, "  [%s] %s\n", step.Type, step.Message)
			}
		}
		fmt.Fprintf(out, "Assistant: %s\n\n", resp.Response)

		history = append(history,
			chat.Message{Role: "user", Content: message},
			chat.Message{Role: "assistant", Content: resp.Response},
		)
	}
}
