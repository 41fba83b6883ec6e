// Package scoring infers kart quality from how a team's pace changes when it
// swaps karts. Everything is recomputed from the lap data on every call.
package scoring

import (
	"math"
	"sort"
)

const (
	DefaultSettlingLaps        = 4
	DefaultOutlierFactor       = 2.6
	DefaultInconsistencyFactor = 2.5
	DefaultBaselineStints      = 3
	DefaultScoreMin            = 0.0
	DefaultScoreMax            = 1000.0

	// minimum number of stint averages needed for a baseline
	minBaselinePoints = 3
	// floor of the rescale denominator
	spreadFloor = 1e-9
)

type Params struct {
	SettlingLaps        int
	OutlierFactor       float64
	InconsistencyFactor float64
	BaselineStints      int
	ScoreMin            float64
	ScoreMax            float64
}

func DefaultParams() Params {
	return Params{
		SettlingLaps:        DefaultSettlingLaps,
		OutlierFactor:       DefaultOutlierFactor,
		InconsistencyFactor: DefaultInconsistencyFactor,
		BaselineStints:      DefaultBaselineStints,
		ScoreMin:            DefaultScoreMin,
		ScoreMax:            DefaultScoreMax,
	}
}

type StintLaps struct {
	KartID string
	Laps   []float64
}

// TeamStints holds a team's stints, oldest first.
type TeamStints struct {
	Team   string
	Stints []StintLaps
}

type Input struct {
	Teams []TeamStints
	// KartIDs lists every kart that receives a score, including karts
	// without any evidence.
	KartIDs []string
}

type StintAverage struct {
	KartID  string  `json:"kartId"`
	Index   int     `json:"index"`
	Average float64 `json:"average"`
}

type Result struct {
	// Scores is empty when no kart has any evidence.
	Scores   map[string]float64
	Raw      map[string]float64
	Evidence map[string][]float64
	Excluded map[string]bool
	Averages map[string][]StintAverage
	// Baseline is zero when condition normalization was skipped.
	Baseline float64
}

// Compute runs the full scoring pipeline.
func Compute(p Params, in Input) Result {
	res := Result{
		Scores:   map[string]float64{},
		Raw:      map[string]float64{},
		Evidence: map[string][]float64{},
		Excluded: map[string]bool{},
		Averages: map[string][]StintAverage{},
	}

	for _, team := range in.Teams {
		avgs := []StintAverage{}
		for i, st := range team.Stints {
			if avg, ok := StintAverageOf(st.Laps, p.SettlingLaps, p.OutlierFactor); ok {
				avgs = append(avgs, StintAverage{KartID: st.KartID, Index: i, Average: avg})
			}
		}
		res.Averages[team.Team] = avgs
		if Inconsistent(averagesOf(avgs), p.InconsistencyFactor) {
			res.Excluded[team.Team] = true
		}
	}

	res.Baseline = baseline(in.Teams, res.Averages, p.BaselineStints)

	for _, team := range in.Teams {
		if res.Excluded[team.Team] {
			continue
		}
		avgs := res.Averages[team.Team]
		for i := 1; i < len(avgs); i++ {
			prev, cur := avgs[i-1], avgs[i]
			if prev.KartID == cur.KartID {
				continue
			}
			delta := prev.Average - cur.Average
			if res.Baseline > 0 {
				delta /= res.Baseline
			}
			res.Evidence[cur.KartID] = append(res.Evidence[cur.KartID], delta)
			res.Evidence[prev.KartID] = append(res.Evidence[prev.KartID], -delta)
		}
	}

	ids := append([]string{}, in.KartIDs...)
	for id := range res.Evidence {
		if !contains(ids, id) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		res.Raw[id] = mean(res.Evidence[id])
	}

	if len(res.Evidence) > 0 {
		res.Scores = Rescale(res.Raw, p.ScoreMin, p.ScoreMax)
	}
	return res
}

// StintAverageOf drops the settling laps, filters outliers around the median
// with a tolerance that grows with lap length and averages what is left.
func StintAverageOf(laps []float64, settling int, outlierFactor float64) (float64, bool) {
	if settling < 0 {
		settling = 0
	}
	if len(laps) <= settling {
		return 0, false
	}
	rest := laps[settling:]
	med := Median(rest)
	threshold := outlierFactor * math.Max(0.5, 0.12*med)

	kept := make([]float64, 0, len(rest))
	for _, l := range rest {
		if math.Abs(l-med) <= threshold {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return 0, false
	}
	return mean(kept), true
}

// Inconsistent reports whether a team's stint averages spread too widely to
// compare karts. Fewer than two averages are never inconsistent.
func Inconsistent(avgs []float64, factor float64) bool {
	if len(avgs) < 2 {
		return false
	}
	m := mean(avgs)
	return stddev(avgs, m) > factor*math.Max(0.5, 0.01*m)
}

// baseline is the median of the most recent stint averages of every team.
func baseline(teams []TeamStints, averages map[string][]StintAverage, recent int) float64 {
	if recent <= 0 {
		recent = DefaultBaselineStints
	}
	points := []float64{}
	for _, team := range teams {
		avgs := averages[team.Team]
		start := len(avgs) - recent
		if start < 0 {
			start = 0
		}
		for _, a := range avgs[start:] {
			points = append(points, a.Average)
		}
	}
	if len(points) < minBaselinePoints {
		return 0
	}
	b := Median(points)
	if b <= 0 {
		return 0
	}
	return b
}

// Rescale maps raw values linearly onto [lo, hi]. The smallest value lands on
// lo and the largest on hi; a set without spread maps to the midpoint.
func Rescale(raw map[string]float64, lo, hi float64) map[string]float64 {
	out := make(map[string]float64, len(raw))
	if len(raw) == 0 {
		return out
	}
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, v := range raw {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	span := math.Max(maxV-minV, spreadFloor)
	center := (minV + maxV) / 2
	mid := (lo + hi) / 2
	for id, v := range raw {
		out[id] = mid + (v-center)/span*(hi-lo)
	}
	return out
}

func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// population standard deviation
func stddev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)))
}

func averagesOf(avgs []StintAverage) []float64 {
	out := make([]float64, len(avgs))
	for i, a := range avgs {
		out[i] = a.Average
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
