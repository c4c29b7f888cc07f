package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alfredjeanlab/agora/internal/engine"
	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/spf13/cobra"
)

var moveCmd = &cobra.Command{
	Use:     "move <type> <target-type> <target-id>",
	Short:   "Make a dialogue move (ASSERT, WHY, GROUNDS, CONCEDE, RETRACT, DEFER)",
	GroupID: "dialogue",
	Example: `  agora move why claim c-1
  agora move grounds claim c-1 --argument a-7
  agora move grounds cq q-3 --argument a-9
  agora move assert claim c-4 --scheme sign --conclusion c-4 --premise sign=c-5`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildMoveRequest(cmd, args)
		if err != nil {
			return err
		}
		res, err := agoraClient.ApplyMove(context.Background(), req)
		if err != nil {
			return fmt.Errorf("applying move: %w", err)
		}
		if jsonOutput {
			printJSON(res)
			return nil
		}
		fmt.Printf("%s %s by %s on %s:%s (version %d)\n",
			res.Move.ID, res.Move.Type, res.Move.ActorID, res.Move.TargetType, res.Move.TargetID, res.GraphVersion)
		if res.Edge != nil {
			fmt.Printf("  edge: %s %s %s\n", res.Edge.Source, res.Edge.Relation, res.Edge.Target)
		}
		if len(res.Closed) > 0 {
			fmt.Println()
			printObligations(os.Stdout, res.Closed)
		}
		return nil
	},
}

// parseMoveType accepts move types in any case.
func parseMoveType(s string) (model.MoveType, error) {
	t := model.MoveType(strings.ToUpper(s))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown move type %q", s)
	}
	return t, nil
}

// parseTargetType accepts "cq" as shorthand for critical questions.
func parseTargetType(s string) (model.TargetType, error) {
	switch strings.ToLower(s) {
	case "claim":
		return model.TargetClaim, nil
	case "argument", "arg":
		return model.TargetArgument, nil
	case "cq", "criticalquestion", "critical-question":
		return model.TargetCriticalQuestion, nil
	}
	return "", fmt.Errorf("unknown target type %q (must be claim, argument or cq)", s)
}

func buildMoveRequest(cmd *cobra.Command, args []string) (*engine.MoveRequest, error) {
	moveType, err := parseMoveType(args[0])
	if err != nil {
		return nil, err
	}
	targetType, err := parseTargetType(args[1])
	if err != nil {
		return nil, err
	}

	replyTo, _ := cmd.Flags().GetString("reply-to")
	text, _ := cmd.Flags().GetString("text")
	argumentID, _ := cmd.Flags().GetString("argument")
	schemeKey, _ := cmd.Flags().GetString("scheme")

	payload := &model.MovePayload{Text: text, ArgumentID: argumentID}
	if schemeKey != "" {
		conclusion, _ := cmd.Flags().GetString("conclusion")
		raw, _ := cmd.Flags().GetStringArray("premise")
		premises, err := parsePremises(raw)
		if err != nil {
			return nil, err
		}
		payload.Scheme = &model.SchemeBinding{SchemeKey: schemeKey, ConclusionID: conclusion, Premises: premises}
	}

	req := &engine.MoveRequest{
		DeliberationID: deliberation,
		ActorID:        actor,
		Type:           moveType,
		TargetType:     targetType,
		TargetID:       args[2],
		ReplyToMoveID:  replyTo,
	}
	if !payload.IsEmpty() {
		req.Payload = payload
	}
	return req, nil
}

func addMoveFlags(cmd *cobra.Command) {
	cmd.Flags().String("reply-to", "", "id of the move this one replies to")
	cmd.Flags().String("text", "", "free text carried with the move")
	cmd.Flags().String("argument", "", "argument id offered as grounds")
	cmd.Flags().String("scheme", "", "scheme key for an ASSERT that instantiates an argument")
	cmd.Flags().String("conclusion", "", "conclusion claim id (with --scheme)")
	cmd.Flags().StringArray("premise", nil, "premise binding role=claim-id[,claim-id] (with --scheme)")
}

func init() {
	addMoveFlags(moveCmd)
}
