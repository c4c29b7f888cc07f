package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/alfredjeanlab/agora/internal/client"
	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/spf13/cobra"
)

var labelsCmd = &cobra.Command{
	Use:     "labels",
	Short:   "Show acceptance labels (IN, OUT, UNDEC)",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sem, _ := cmd.Flags().GetString("semantics")
		minVersion, _ := cmd.Flags().GetUint64("min-version")
		lab, err := agoraClient.GetLabels(context.Background(), &client.LabelsRequest{
			DeliberationID: deliberation,
			Semantics:      model.Semantics(sem),
			MinVersion:     minVersion,
		})
		if err != nil {
			return fmt.Errorf("getting labels: %w", err)
		}
		if jsonOutput {
			printJSON(lab)
			return nil
		}
		printLabels(os.Stdout, lab)
		return nil
	},
}

var graphCmd = &cobra.Command{
	Use:     "graph",
	Short:   "Show the nodes and edges of the argument graph",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := agoraClient.GetGraph(context.Background(), deliberation)
		if err != nil {
			return fmt.Errorf("getting graph: %w", err)
		}
		if jsonOutput {
			printJSON(snap)
			return nil
		}
		fmt.Printf("Deliberation %s at version %d\n\n", snap.DeliberationID, snap.Version)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSCHEME\tTEXT")
		for _, n := range snap.Nodes {
			text := n.Text
			if n.IsArgument() {
				text = "=> " + n.Conclusion
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.ID, n.Kind, n.SchemeKey, truncate(text, 60))
		}
		w.Flush()
		if len(snap.Edges) == 0 {
			return nil
		}
		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tRELATION\tTARGET\tSCOPE")
		for _, e := range snap.Edges {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Source, e.Relation, e.Target, e.Scope)
		}
		return w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Summarize the deliberation",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := agoraClient.GetStats(context.Background(), deliberation)
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		if jsonOutput {
			printJSON(st)
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Graph version:\t%d (labels at %d)\n", st.GraphVersion, st.LabelVersion)
		fmt.Fprintf(w, "Nodes:\t%d claims, %d arguments\n", st.Framework.Claims, st.Framework.Arguments)
		fmt.Fprintf(w, "Edges:\t%d (%d supports, %d attacks, %d derived)\n",
			st.Framework.Edges, st.Framework.Supports, st.Framework.BaseAttacks, st.Framework.DerivedAttacks)
		fmt.Fprintf(w, "Attack cycles:\t%v\n", st.Framework.HasCycles)
		fmt.Fprintf(w, "Labels:\t%d IN, %d OUT, %d UNDEC\n", st.Labels.In, st.Labels.Out, st.Labels.Undec)
		fmt.Fprintf(w, "Moves:\t%d by %d actors\n", st.Moves, st.Actors)
		fmt.Fprintf(w, "Open obligations:\t%d\n", st.OpenObligations)
		fmt.Fprintf(w, "Open questions:\t%d\n", st.OpenQuestions)
		fmt.Fprintf(w, "Closed:\t%v\n", st.Closed)
		if st.RecomputeFailures > 0 {
			fmt.Fprintf(w, "Recompute failures:\t%d\n", st.RecomputeFailures)
		}
		return w.Flush()
	},
}

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Export the deliberation as JSON, AIF or JSONL",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		raw, err := agoraClient.Export(context.Background(), deliberation, format)
		if err != nil {
			return fmt.Errorf("exporting: %w", err)
		}
		if output == "" || output == "-" {
			_, err = os.Stdout.Write(raw)
			return err
		}
		if err := os.WriteFile(output, raw, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %d bytes to %s\n", len(raw), output)
		return nil
	},
}

var schemesCmd = &cobra.Command{
	Use:     "schemes [key]",
	Short:   "List argumentation schemes or show one",
	GroupID: "views",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if len(args) == 1 {
			sc, err := agoraClient.GetScheme(ctx, args[0])
			if err != nil {
				return fmt.Errorf("getting scheme: %w", err)
			}
			if jsonOutput {
				printJSON(sc)
				return nil
			}
			fmt.Printf("%s (%s)\n", sc.Name, sc.Key)
			if sc.Description != "" {
				fmt.Println(sc.Description)
			}
			fmt.Println("\nSlots:")
			for _, s := range sc.Slots {
				fmt.Printf("  %s (min %d)\n", s.Role, s.Min)
			}
			fmt.Println("\nCritical questions:")
			for _, q := range sc.CQTemplates {
				fmt.Printf("  %-24s %-10s %s\n", q.Key, q.AttackType, q.Text)
			}
			return nil
		}

		schemes, err := agoraClient.ListSchemes(ctx)
		if err != nil {
			return fmt.Errorf("listing schemes: %w", err)
		}
		if jsonOutput {
			printJSON(schemes)
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tNAME\tSLOTS\tCQS")
		for _, sc := range schemes {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", sc.Key, sc.Name, len(sc.Slots), len(sc.CQTemplates))
		}
		return w.Flush()
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the agora service",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := agoraClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		if jsonOutput {
			printJSON(map[string]string{"status": status})
		} else {
			fmt.Printf("Health: %s\n", status)
		}
		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

func init() {
	labelsCmd.Flags().String("semantics", "grounded", "semantics (grounded or preferred)")
	labelsCmd.Flags().Uint64("min-version", 0, "wait for labels of at least this graph version")
	exportCmd.Flags().String("format", "json", "export format (json, aif or jsonl)")
	exportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
}
