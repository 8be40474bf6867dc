package discovery

import "time"

// RefreshPriority orders how urgently a cached record should be re-discovered.
type RefreshPriority string

const (
	RefreshNone   RefreshPriority = "none"
	RefreshLow    RefreshPriority = "low"
	RefreshMedium RefreshPriority = "medium"
	RefreshHigh   RefreshPriority = "high"
)

// Freshness maps the age of a record onto a decay score.
func Freshness(age time.Duration) float64 {
	switch {
	case age <= time.Hour:
		return 1.0
	case age <= 24*time.Hour:
		return 0.9
	case age <= 7*24*time.Hour:
		return 0.7
	case age <= 30*24*time.Hour:
		return 0.5
	default:
		return 0.3
	}
}

// ShouldRefresh evaluates the ordered refresh rules against a record and
// returns the first matching priority.
func ShouldRefresh(rec *FusedRecord, now time.Time) RefreshPriority {
	if rec == nil {
		return RefreshHigh
	}
	freshness := Freshness(now.Sub(rec.DiscoveredAt))
	confidence := rec.Confidence.Overall
	switch {
	case confidence < 0.7 && freshness < 0.8:
		return RefreshHigh
	case freshness < 0.5 || confidence < 0.6:
		return RefreshMedium
	case freshness < 0.7 && confidence < 0.8:
		return RefreshLow
	default:
		return RefreshNone
	}
}
