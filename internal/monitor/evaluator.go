package monitor

import (
	"fmt"
	"math"

	"equipment-monitor/internal/models"
)

// Classification is the result of comparing one reading against its threshold.
//
// InBand is true only when the value lies inside [Min, Max]. A value outside the range
// whose deviation is below the warning factor has Severity none and InBand false: it
// neither opens nor resolves an alert.
type Classification struct {
	Severity  models.Severity
	InBand    bool
	Deviation float64
	Bound     float64
}

type band struct {
	factor   float64
	severity models.Severity
}

// bandsOf lists the bands from most to least severe.
func bandsOf(b models.Bands) []band {
	return []band{
		{b.Emergency, models.SeverityEmergency},
		{b.Critical, models.SeverityCritical},
		{b.Warning, models.SeverityWarning},
	}
}

// Evaluate classifies a reading. Deviation is the distance from the violated bound
// relative to the larger of that bound's magnitude and the range width, so bounds near
// zero are measured against the range.
func Evaluate(r models.Reading, t models.Threshold) (Classification, error) {
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return Classification{}, fmt.Errorf("%w: %s/%s value %v is not finite", models.ErrIngestion, r.DeviceID, r.MetricType, r.Value)
	}

	var bound float64
	switch {
	case r.Value > t.Max:
		bound = t.Max
	case r.Value < t.Min:
		bound = t.Min
	default:
		return Classification{InBand: true}, nil
	}

	scale := math.Max(math.Abs(bound), t.Max-t.Min)
	deviation := math.Abs(r.Value-bound) / scale

	c := Classification{Deviation: deviation, Bound: bound}
	for _, b := range bandsOf(t.Bands) {
		if deviation >= b.factor {
			c.Severity = b.severity
			break
		}
	}
	return c, nil
}
