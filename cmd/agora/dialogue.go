package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var obligationsCmd = &cobra.Command{
	Use:     "obligations",
	Short:   "Show burdens of proof in the deliberation",
	GroupID: "dialogue",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		res, err := agoraClient.GetObligations(context.Background(), deliberation, all)
		if err != nil {
			return fmt.Errorf("getting obligations: %w", err)
		}
		if jsonOutput {
			printJSON(res)
			return nil
		}
		if len(res.Obligations) == 0 {
			fmt.Println("No obligations.")
		} else {
			printObligations(os.Stdout, res.Obligations)
		}
		if res.Closed {
			fmt.Println("\nDeliberation is closed: no open obligations remain.")
		}
		return nil
	},
}

var commitmentsCmd = &cobra.Command{
	Use:     "commitments [actor]",
	Short:   "Show an actor's commitment store (defaults to --actor)",
	GroupID: "dialogue",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if consensus, _ := cmd.Flags().GetBool("consensus"); consensus {
			rows, err := agoraClient.GetConsensus(ctx, deliberation)
			if err != nil {
				return fmt.Errorf("getting consensus: %w", err)
			}
			if jsonOutput {
				printJSON(rows)
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NODE\tCOMMITTED\tRETRACTIONS\tACTORS")
			for _, c := range rows {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", c.NodeID, c.Committed, c.Retractions, strings.Join(c.Actors, ","))
			}
			return w.Flush()
		}

		who := actor
		if len(args) == 1 {
			who = args[0]
		}
		ids, err := agoraClient.GetCommitments(ctx, deliberation, who)
		if err != nil {
			return fmt.Errorf("getting commitments: %w", err)
		}
		if jsonOutput {
			printJSON(map[string]any{"actor_id": who, "commitments": ids})
			return nil
		}
		if len(ids) == 0 {
			fmt.Printf("%s has no commitments.\n", who)
			return nil
		}
		fmt.Printf("%s is committed to:\n", who)
		for _, id := range ids {
			fmt.Printf("  %s\n", id)
		}
		return nil
	},
}

func init() {
	obligationsCmd.Flags().Bool("all", false, "include answered, conceded and deferred obligations")
	commitmentsCmd.Flags().Bool("consensus", false, "show commitment consensus for every node instead")
}
