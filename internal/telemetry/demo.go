package telemetry

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/petalworks/coldchain-core/internal/shipment"
)

// Demo series shape: 48 points at 30-minute spacing cover the trailing
// 24 hours of a plausible refrigerated trace.
const (
	demoPointCount = 48
	demoSpacing    = 30 * time.Minute

	demoBaselineTemp  = 4.0
	demoTempAmplitude = 2.5
	demoTempJitter    = 0.8

	demoBaselineHumidity  = 78.0
	demoHumidityAmplitude = 7.0
	demoHumidityJitter    = 2.0
)

// demoPolicy is the threshold envelope the synthetic series is evaluated
// against. The humidity bounds are deliberately wide so only temperature
// drives demo alerts.
var demoPolicy = &shipment.Shipment{
	ID:          "demo",
	Code:        "DEMO",
	Status:      shipment.StatusInTransit,
	MinTemp:     2.0,
	MaxTemp:     7.0,
	MinHumidity: 0.0,
	MaxHumidity: 100.0,
}

// GenerateDemoSeries produces the synthetic fallback series ending at
// now, newest first.
//
// Each point runs through the same Evaluate function as live ingestion,
// so the alert flags on the synthetic data follow the exact semantics a
// real shipment with the demo envelope would see. The output is tagged
// demo and is never written to persistent storage.
func GenerateDemoSeries(now time.Time) []EnrichedReading {
	return generateDemoSeries(now, rand.New(rand.NewSource(now.UnixNano())))
}

func generateDemoSeries(now time.Time, rng *rand.Rand) []EnrichedReading {
	now = now.UTC()
	readings := make([]EnrichedReading, 0, demoPointCount)

	for i := 0; i < demoPointCount; i++ {
		phase := 2 * math.Pi * float64(i) / float64(demoPointCount)

		temp := demoBaselineTemp +
			demoTempAmplitude*math.Sin(phase) +
			(rng.Float64()-0.5)*2*demoTempJitter
		humidity := demoBaselineHumidity +
			demoHumidityAmplitude*math.Sin(phase/2+1.3) +
			(rng.Float64()-0.5)*2*demoHumidityJitter

		temp = math.Round(temp*10) / 10
		humidity = math.Round(humidity*10) / 10

		m := Measurements{
			Temperature: &temp,
			Humidity:    &humidity,
		}
		v := Evaluate(m, demoPolicy)

		recordedAt := now.Add(-time.Duration(i) * demoSpacing)
		shipmentID := demoPolicy.ID

		er := EnrichedReading{
			Reading: Reading{
				ID:           fmt.Sprintf("demo-%02d", i),
				DeviceID:     "demo-device",
				ShipmentID:   &shipmentID,
				Measurements: m,
				IsAlert:      v != nil,
				RecordedAt:   recordedAt,
				CreatedAt:    recordedAt,
			},
			DeviceExternalID: "DEMO-SENSOR",
			DeviceName:       "Demonstration sensor",
			DeviceType:       "temperature_humidity",
			ShipmentCode:     demoPolicy.Code,
			ShipmentStatus:   string(demoPolicy.Status),
			ShipmentBounds:   demoPolicy.Clone(),
		}
		if v != nil {
			er.AlertType = v.Type
		}

		readings = append(readings, er)
	}

	return readings
}
