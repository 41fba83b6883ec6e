package race

import "kartpitsbot/pkg/model"

// DemoObservations is a fixed batch for exercising the pipeline without a
// live feed: three teams, three laps each.
func DemoObservations() []model.Observation {
	laps := []struct {
		number string
		lap    float64
	}{
		{"1", 72.3}, {"2", 74.1}, {"3", 70.5},
		{"1", 71.8}, {"2", 73.5}, {"3", 69.9},
		{"1", 72.0}, {"2", 75.0}, {"3", 70.2},
	}
	obs := make([]model.Observation, 0, len(laps))
	for _, l := range laps {
		obs = append(obs, model.Observation{
			TeamNumber:     l.number,
			KartNumber:     l.number,
			TeamName:       "Team " + l.number,
			LapTimeSeconds: l.lap,
		})
	}
	return obs
}
