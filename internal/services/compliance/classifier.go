package compliance

import (
	"fmt"
	"time"

	"github.com/medequip/compliance/internal/models"
)

// DefaultHorizonDays is the scan horizon used when none is configured.
const DefaultHorizonDays = 30

// Classify returns the alert type and signed day count for a lot expiring
// at exp. ok is false when the lot is beyond the horizon and no alert is
// produced.
func Classify(exp, now time.Time, horizonDays int) (alertType models.AlertType, days int, ok bool) {
	days = models.DaysUntil(exp, now)
	switch {
	case days < 0:
		return models.AlertTypeExpired, days, true
	case days <= horizonDays:
		return models.AlertTypeExpiringSoon, days, true
	default:
		return "", days, false
	}
}

// Thresholds bound the critical and warning severity buckets, in days.
type Thresholds struct {
	Critical int
	Warning  int
}

// DefaultThresholds returns critical at 7 days and warning at 30.
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 7, Warning: 30}
}

// SeverityOf buckets a day count.
func (t Thresholds) SeverityOf(days int) models.Severity {
	switch {
	case days < 0:
		return models.SeverityExpired
	case days <= t.Critical:
		return models.SeverityCritical
	case days <= t.Warning:
		return models.SeverityWarning
	default:
		return models.SeverityOK
	}
}

// SeverityOf buckets a day count with the default thresholds.
func SeverityOf(days int) models.Severity {
	return DefaultThresholds().SeverityOf(days)
}

// HumanDays renders a day count for display.
func HumanDays(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("%d days ago", -days)
	case days == 0:
		return "Today"
	case days == 1:
		return "Tomorrow"
	default:
		return fmt.Sprintf("%d days", days)
	}
}
