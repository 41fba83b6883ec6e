// Package feed turns raw timing provider payloads into observations.
//
// Payloads are loosely structured: either markup with timing tables (or just
// text blocks) or a JSON document of arbitrary nesting. Extraction is
// heuristic and never fails: a payload that yields nothing is simply "no data".
package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"kartpitsbot/pkg/model"
)

type Kind string

const (
	KindHTML Kind = "html"
	KindJSON Kind = "json"
)

// DetectKind classifies a payload as JSON when it is a valid JSON object or
// array, markup otherwise.
func DetectKind(payload []byte) Kind {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return KindJSON
	}
	return KindHTML
}

// Extract dispatches on kind. An empty kind is detected from the payload.
func Extract(kind Kind, payload []byte) []model.Observation {
	if kind == "" {
		kind = DetectKind(payload)
	}
	switch kind {
	case KindJSON:
		return ExtractJSON(payload)
	default:
		return ExtractHTML(payload)
	}
}

type dedupe struct {
	seen map[string]struct{}
	out  []model.Observation
}

func newDedupe() *dedupe {
	return &dedupe{seen: map[string]struct{}{}, out: []model.Observation{}}
}

func (d *dedupe) add(o model.Observation) {
	key := fmt.Sprintf("%s|%s|%.2f", o.TeamNumber, o.KartNumber, math.Round(o.LapTimeSeconds*100)/100)
	if _, ok := d.seen[key]; ok {
		return
	}
	d.seen[key] = struct{}{}
	d.out = append(d.out, o)
}
