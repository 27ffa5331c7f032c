package analysis

import "github.com/syntheticfinds/vendor-software-integration/pkg/models"

// Impact is 100 minus five points per unit of severity-weighted negative
// burden, offset by half the weight of positive signals. Neutral signals do
// not move it.
func Impact(events []models.SignalEvent) float64 {
	raw := 0.0
	for _, e := range events {
		switch e.Valence() {
		case models.ValenceNegative:
			raw += e.Severity.Weight()
		case models.ValencePositive:
			raw -= e.Severity.Weight() * 0.5
		}
	}
	return Clamp(100-raw*5, 0, 100)
}
