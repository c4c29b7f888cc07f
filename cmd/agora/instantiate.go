package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alfredjeanlab/agora/internal/engine"
	"github.com/spf13/cobra"
)

var instantiateCmd = &cobra.Command{
	Use:     "instantiate <scheme>",
	Short:   "Instantiate an argument from a scheme",
	GroupID: "graph",
	Example: "  agora instantiate expert_opinion --conclusion c-1 --premise source=c-2 --premise assertion=c-3",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conclusion, _ := cmd.Flags().GetString("conclusion")
		raw, _ := cmd.Flags().GetStringArray("premise")
		premises, err := parsePremises(raw)
		if err != nil {
			return err
		}

		res, err := agoraClient.InstantiateArgument(context.Background(), &engine.InstantiateRequest{
			DeliberationID: deliberation,
			ActorID:        actor,
			SchemeKey:      args[0],
			ConclusionID:   conclusion,
			Premises:       premises,
		})
		if err != nil {
			return fmt.Errorf("instantiating argument: %w", err)
		}
		if jsonOutput {
			printJSON(res)
			return nil
		}
		fmt.Printf("Instantiated argument %s (version %d)\n", res.Argument.ID, res.GraphVersion)
		printNode(os.Stdout, res.Argument)
		if len(res.Questions) > 0 {
			fmt.Println()
			printQuestions(os.Stdout, res.Questions)
		}
		return nil
	},
}

// parsePremises turns role=id[,id...] pairs into a slot binding. Repeated
// roles accumulate.
func parsePremises(pairs []string) (map[string][]string, error) {
	premises := make(map[string][]string, len(pairs))
	for _, pair := range pairs {
		role, ids, ok := strings.Cut(pair, "=")
		role = strings.TrimSpace(role)
		if !ok || role == "" || strings.TrimSpace(ids) == "" {
			return nil, fmt.Errorf("invalid premise %q (want role=claim-id)", pair)
		}
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				premises[role] = append(premises[role], id)
			}
		}
	}
	return premises, nil
}

func init() {
	instantiateCmd.Flags().String("conclusion", "", "conclusion claim id (required)")
	instantiateCmd.Flags().StringArray("premise", nil, "premise binding role=claim-id[,claim-id] (repeatable)")
	_ = instantiateCmd.MarkFlagRequired("conclusion")
}
