package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/alfredjeanlab/agora/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printNode(w io.Writer, n *model.Node) {
	fmt.Fprintf(w, "ID:          %s\n", n.ID)
	fmt.Fprintf(w, "Kind:        %s\n", n.Kind)
	if n.Text != "" {
		fmt.Fprintf(w, "Text:        %s\n", n.Text)
	}
	if n.IsArgument() {
		fmt.Fprintf(w, "Scheme:      %s\n", n.SchemeKey)
		fmt.Fprintf(w, "Conclusion:  %s\n", n.Conclusion)
		for _, p := range n.Premises {
			fmt.Fprintf(w, "Premise:     %s (%s)\n", p.ClaimID, p.Role)
		}
	}
	if n.CreatedBy != "" {
		fmt.Fprintf(w, "Created By:  %s\n", n.CreatedBy)
	}
}

func printQuestions(w io.Writer, qs []*model.CriticalQuestion) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tARGUMENT\tKEY\tATTACK\tSTATUS\tQUESTION")
	for _, q := range qs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", q.ID, q.ArgumentID, q.CQKey, q.AttackType, q.Status, truncate(q.Text, 60))
	}
	tw.Flush()
}

func printObligations(w io.Writer, obligations []*model.Obligation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTARGET\tDEBTORS\tCHALLENGER")
	for _, o := range obligations {
		fmt.Fprintf(tw, "%s\t%s\t%s:%s\t%s\t%s\n", o.ID, o.Status, o.TargetType, o.TargetID, strings.Join(o.Debtors, ","), o.Challenger)
	}
	tw.Flush()
}

// printLabels prints one row per node in id order.
func printLabels(w io.Writer, lab *model.Labeling) {
	fmt.Fprintf(w, "%s labels at version %d\n", lab.Semantics, lab.Version)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, id := range sortedKeys(lab.Labels) {
		fmt.Fprintf(tw, "  %s\t%s\n", id, ui.RenderLabel(lab.Labels[id]))
	}
	tw.Flush()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
