package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var claimCmd = &cobra.Command{
	Use:     "claim <text>",
	Short:   "Add a claim to the deliberation",
	GroupID: "graph",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := agoraClient.AddClaim(context.Background(), deliberation, actor, strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("adding claim: %w", err)
		}
		if jsonOutput {
			printJSON(res)
			return nil
		}
		if res.Created {
			fmt.Printf("Added claim %s (version %d)\n", res.Claim.ID, res.GraphVersion)
		} else {
			fmt.Printf("Claim %s already exists\n", res.Claim.ID)
		}
		printNode(os.Stdout, res.Claim)
		return nil
	},
}
