package telemetry

import "github.com/petalworks/coldchain-core/internal/shipment"

// Violation describes a single threshold breach.
type Violation struct {
	Type        AlertType
	Severity    Severity
	ActualValue float64
}

// severityByAlertType fixes the severity policy per violation dimension.
// Keeping it as data rather than inline conditionals lets the policy be
// tested and extended independently of the evaluation control flow.
var severityByAlertType = map[AlertType]Severity{
	AlertTemperatureLow:  SeverityCritical,
	AlertTemperatureHigh: SeverityCritical,
	AlertHumidityLow:     SeverityWarning,
	AlertHumidityHigh:    SeverityWarning,
}

// Evaluate checks the measurements against the shipment's safety bounds.
// Pure function: no side effects, no external calls.
//
// Returns nil when there is no violation. A nil shipment never violates
// (no bounds to check), and absent measurement channels are skipped. When
// both temperature and humidity breach at once, the temperature violation
// wins and a single result is returned; one alert type per reading.
func Evaluate(m Measurements, shp *shipment.Shipment) *Violation {
	if shp == nil {
		return nil
	}

	if m.Temperature != nil {
		switch {
		case *m.Temperature < shp.MinTemp:
			return violation(AlertTemperatureLow, *m.Temperature)
		case *m.Temperature > shp.MaxTemp:
			return violation(AlertTemperatureHigh, *m.Temperature)
		}
	}

	if m.Humidity != nil {
		switch {
		case *m.Humidity < shp.MinHumidity:
			return violation(AlertHumidityLow, *m.Humidity)
		case *m.Humidity > shp.MaxHumidity:
			return violation(AlertHumidityHigh, *m.Humidity)
		}
	}

	return nil
}

func violation(alertType AlertType, actual float64) *Violation {
	return &Violation{
		Type:        alertType,
		Severity:    severityByAlertType[alertType],
		ActualValue: actual,
	}
}
