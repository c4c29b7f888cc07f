package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// header is the first JSONL record written by WriteJSONL.
type header struct {
	Version           string    `json:"version"`
	Type              string    `json:"type"`
	Timestamp         time.Time `json:"timestamp"`
	DeliberationCount int       `json:"deliberation_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WriteJSONL writes a header line followed by one line per artifact, sorted
// by deliberation id.
func WriteJSONL(w io.Writer, artifacts []*Artifact, now time.Time) error {
	sorted := make([]*Artifact, len(artifacts))
	copy(sorted, artifacts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DeliberationID < sorted[j].DeliberationID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:           "1",
		Type:              "header",
		Timestamp:         now,
		DeliberationCount: len(sorted),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, a := range sorted {
		if err := enc.Encode(record{Type: "deliberation", Data: a}); err != nil {
			return fmt.Errorf("encode deliberation %s: %w", a.DeliberationID, err)
		}
	}
	return nil
}
