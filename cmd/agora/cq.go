package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alfredjeanlab/agora/internal/client"
	"github.com/spf13/cobra"
)

var cqCmd = &cobra.Command{
	Use:     "cq",
	Short:   "List and answer critical questions",
	GroupID: "graph",
}

var cqListCmd = &cobra.Command{
	Use:   "list [argument-id]",
	Short: "List open critical questions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		req := &client.ListQuestionsRequest{DeliberationID: deliberation, All: all}
		if len(args) == 1 {
			req.ArgumentID = args[0]
		}
		qs, err := agoraClient.ListCriticalQuestions(context.Background(), req)
		if err != nil {
			return fmt.Errorf("listing critical questions: %w", err)
		}
		if jsonOutput {
			printJSON(qs)
			return nil
		}
		if len(qs) == 0 {
			fmt.Println("No critical questions.")
			return nil
		}
		printQuestions(os.Stdout, qs)
		return nil
	},
}

var cqMaterializeCmd = &cobra.Command{
	Use:   "materialize <cq-id> <counter-argument-id>",
	Short: "Answer a critical question with a counter-argument",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := agoraClient.MaterializeCQ(context.Background(), &client.MaterializeRequest{
			DeliberationID:    deliberation,
			ActorID:           actor,
			QuestionID:        args[0],
			CounterArgumentID: args[1],
		})
		if err != nil {
			return fmt.Errorf("materializing critical question: %w", err)
		}
		if jsonOutput {
			printJSON(res)
			return nil
		}
		fmt.Printf("%s %s %s (version %d)\n", res.Edge.Source, res.Edge.Relation, res.Edge.Target, res.GraphVersion)
		return nil
	},
}

func init() {
	cqListCmd.Flags().Bool("all", false, "include answered, conceded and deferred questions")
	cqCmd.AddCommand(cqListCmd)
	cqCmd.AddCommand(cqMaterializeCmd)
}
