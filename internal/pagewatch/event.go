package pagewatch

import (
	"encoding/json"
	"fmt"

	"github.com/gushwork/leadwatch/internal/capture"
	"github.com/gushwork/leadwatch/internal/extract"
)

// pageEvent is one message from the injected capture script.
type pageEvent struct {
	Kind     string     `json:"kind"` // submit | ready | shadow
	Form     string     `json:"form"`
	URL      string     `json:"url"`
	Referrer string     `json:"referrer"`
	Fields   [][]string `json:"fields"`
	Forms    int        `json:"forms"`
}

// parseEvent decodes a binding payload from the page.
func parseEvent(payload []byte) (*pageEvent, error) {
	var ev pageEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("pagewatch: parse event: %w", err)
	}
	if ev.Kind == "" {
		return nil, fmt.Errorf("pagewatch: event without kind")
	}
	if ev.Kind == "submit" {
		for i, f := range ev.Fields {
			if len(f) != 2 {
				return nil, fmt.Errorf("pagewatch: field %d: want [name, value] pair, got %d elements", i, len(f))
			}
		}
	}
	return &ev, nil
}

// submission converts a submit event into the coordinator's input.
func (ev *pageEvent) submission(userAgent string) capture.Submission {
	fields := make([]extract.Field, 0, len(ev.Fields))
	for _, f := range ev.Fields {
		fields = append(fields, extract.Field{Name: f[0], Value: f[1]})
	}
	return capture.Submission{
		FormToken: ev.Form,
		Fields:    fields,
		SourceURL: ev.URL,
		Referrer:  ev.Referrer,
		UserAgent: userAgent,
	}
}
