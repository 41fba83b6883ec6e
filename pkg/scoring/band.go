package scoring

import "strings"

const (
	BandPurple  = "purple"
	BandGreen   = "green"
	BandYellow  = "yellow"
	BandOrange  = "orange"
	BandRed     = "red"
	BandNeutral = "neutral"
)

var bands = []struct {
	name           string
	threshold      float64
	representative float64
}{
	{BandPurple, 900, 950},
	{BandGreen, 700, 800},
	{BandYellow, 500, 600},
	{BandOrange, 300, 400},
	{BandRed, 0, 150},
}

// Band returns the color band of a score. A nil score is neutral.
func Band(score *float64) string {
	if score == nil {
		return BandNeutral
	}
	for _, b := range bands {
		if *score >= b.threshold {
			return b.name
		}
	}
	return BandRed
}

// BandScore returns the score that represents a band, used for manual color
// overrides. Neutral (or its legacy name "blue") has no score.
func BandScore(name string) (score *float64, ok bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == BandNeutral || name == "blue" {
		return nil, true
	}
	for _, b := range bands {
		if b.name == name {
			v := b.representative
			return &v, true
		}
	}
	return nil, false
}
