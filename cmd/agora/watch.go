package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/alfredjeanlab/agora/internal/client"
	"github.com/alfredjeanlab/agora/internal/events"
	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/alfredjeanlab/agora/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Watch label changes in the deliberation",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		once, _ := cmd.Flags().GetBool("once")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		w := &labelWatcher{client: agoraClient, deliberationID: deliberation}
		if err := w.refresh(ctx); err != nil {
			return err
		}
		if once {
			return nil
		}

		natsURL := os.Getenv("AGORA_NATS_URL")
		if natsURL == "" {
			natsURL = active().NATSURL
		}
		if natsURL != "" {
			return watchNATS(ctx, natsURL, w)
		}
		return watchPoll(ctx, interval, w)
	},
}

// labelWatcher prints label transitions between successive labelings.
type labelWatcher struct {
	client         client.AgoraClient
	deliberationID string
	last           *model.Labeling
}

func (w *labelWatcher) refresh(ctx context.Context) error {
	lab, err := w.client.GetLabels(ctx, &client.LabelsRequest{DeliberationID: w.deliberationID})
	if err != nil {
		return fmt.Errorf("getting labels: %w", err)
	}
	if w.last != nil && lab.Version == w.last.Version {
		return nil
	}
	if w.last == nil {
		printLabels(os.Stdout, lab)
	} else {
		for _, c := range diffLabels(w.last, lab) {
			fmt.Printf("%s  v%d  %s  %s -> %s\n",
				ui.RenderMuted(time.Now().Format("15:04:05")), lab.Version, c.id, ui.RenderLabel(c.from), ui.RenderLabel(c.to))
		}
	}
	w.last = lab
	return nil
}

type labelChange struct {
	id       string
	from, to model.LabelValue
}

// diffLabels lists nodes whose label differs between prev and next, in id
// order. Nodes missing from a labeling count as UNDEC.
func diffLabels(prev, next *model.Labeling) []labelChange {
	var changes []labelChange
	for _, id := range sortedKeys(next.Labels) {
		from, to := prev.Label(id), next.Labels[id]
		if from != to {
			changes = append(changes, labelChange{id: id, from: from, to: to})
		}
	}
	for _, id := range sortedKeys(prev.Labels) {
		if _, ok := next.Labels[id]; !ok {
			changes = append(changes, labelChange{id: id, from: prev.Labels[id], to: model.LabelUndec})
		}
	}
	return changes
}

// eventDeliberation extracts the deliberation id carried by an event payload.
func eventDeliberation(data []byte) string {
	var payload struct {
		DeliberationID string `json:"deliberation_id"`
		Move           *struct {
			DeliberationID string `json:"deliberation_id"`
		} `json:"move"`
	}
	if json.Unmarshal(data, &payload) != nil {
		return ""
	}
	if payload.DeliberationID == "" && payload.Move != nil {
		return payload.Move.DeliberationID
	}
	return payload.DeliberationID
}

// messageDeliberation prefers the transport header over the payload.
func messageDeliberation(msg events.Message) string {
	if msg.Deliberation != "" {
		return msg.Deliberation
	}
	return eventDeliberation(msg.Data)
}

// watchNATS re-reads labels whenever a labels event for the deliberation
// arrives, and after reconnects.
func watchNATS(ctx context.Context, natsURL string, w *labelWatcher) error {
	reconnectCh := make(chan struct{}, 1)

	sub, err := events.NewNATSSubscriber(natsURL,
		events.ForDeliberation(w.deliberationID),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
			select {
			case reconnectCh <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(events.TopicLabelsUpdated)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if messageDeliberation(msg) != w.deliberationID {
				continue
			}
		case <-reconnectCh:
		}
		if err := w.refresh(ctx); err != nil {
			return err
		}
	}
}

// watchPoll polls for changes at the given interval.
func watchPoll(ctx context.Context, interval time.Duration, w *labelWatcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
		if err := w.refresh(ctx); err != nil {
			return err
		}
	}
}

func init() {
	watchCmd.Flags().Duration("interval", 2*time.Second, "polling interval when NATS is not configured")
	watchCmd.Flags().Bool("once", false, "print current labels and exit")
}
