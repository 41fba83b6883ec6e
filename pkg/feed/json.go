package feed

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"kartpitsbot/pkg/model"
)

// Key aliases in priority order. Lookup is case-insensitive.
var (
	nameKeys     = []string{"teamName", "team_name", "team", "name", "driverName", "driver_name", "driver", "pilot", "entrant"}
	numberKeys   = []string{"teamNumber", "team_number", "number", "startNumber", "start_number", "no", "nr", "num", "carNumber", "car"}
	kartKeys     = []string{"kartNumber", "kart_number", "kartNo", "kart", "transponder", "transponderNumber"}
	lastLapKeys  = []string{"lastLap", "last_lap", "lastLapTime", "last_lap_time", "lapTime", "lap_time", "laptime", "last", "time"}
	bestLapKeys  = []string{"bestLap", "best_lap", "bestLapTime", "best_lap_time", "fastestLap", "best"}
	positionKeys = []string{"position", "pos", "rank", "place"}
)

// ExtractJSON scans every array anywhere in the document and probes its
// object elements for timing fields.
func ExtractJSON(payload []byte) []model.Observation {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return []model.Observation{}
	}
	d := newDedupe()
	walkJSON(doc, d)
	return d.out
}

func walkJSON(v any, d *dedupe) {
	switch t := v.(type) {
	case []any:
		for _, el := range t {
			if obj, ok := el.(map[string]any); ok {
				if o, ok := objectObservation(obj); ok {
					d.add(o)
				}
			}
			walkJSON(el, d)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkJSON(t[k], d)
		}
	}
}

func objectObservation(obj map[string]any) (model.Observation, bool) {
	lower := make(map[string]any, len(obj))
	for k, v := range obj {
		lower[strings.ToLower(k)] = v
	}
	probe := func(keys []string) (any, bool) {
		for _, k := range keys {
			if v, ok := lower[strings.ToLower(k)]; ok && v != nil {
				return v, true
			}
		}
		return nil, false
	}

	o := model.Observation{}
	if v, ok := probe(nameKeys); ok {
		if s, ok := v.(string); ok {
			o.TeamName = strings.TrimSpace(s)
		}
	}
	if v, ok := probe(numberKeys); ok {
		o.TeamNumber = identifier(v)
	}
	if v, ok := probe(kartKeys); ok {
		o.KartNumber = identifier(v)
	}
	if o.TeamNumber == "" {
		o.TeamNumber = o.KartNumber
	} else if o.KartNumber != "" {
		o.KartNumber = o.TeamNumber
	}
	if o.TeamName == "" && o.TeamNumber == "" {
		return model.Observation{}, false
	}

	if v, ok := probe(lastLapKeys); ok {
		if secs, ok := jsonSeconds(v); ok {
			o.LapTimeSeconds = secs
		}
	}
	if v, ok := probe(bestLapKeys); ok {
		if secs, ok := jsonSeconds(v); ok {
			o.BestLapSeconds = &secs
		}
	}
	if v, ok := probe(positionKeys); ok {
		if f, ok := jsonNumber(v); ok && f >= 1 && f == math.Trunc(f) {
			pos := int(f)
			o.Position = &pos
		}
	}
	return o, true
}

func identifier(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func jsonNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// jsonSeconds accepts lap time strings and plain numbers. Numbers of 1000 or
// more are taken as milliseconds.
func jsonSeconds(v any) (float64, bool) {
	switch t := v.(type) {
	case string:
		return ParseLapTime(t)
	case float64:
		if t <= 0 {
			return 0, false
		}
		if t >= 1000 {
			return t / 1000, true
		}
		return t, true
	}
	return 0, false
}
