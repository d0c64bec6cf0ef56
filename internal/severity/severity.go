// Package severity classifies utilization readings against thresholds.
//
// Missing telemetry is never an incident: a None reading is OK. Report cells
// are styled from each metric's own Level, while report inclusion uses the
// worst-of Overall level of the instance.
package severity

import (
	"math"

	"github.com/YumeNoTenshi/utilwatch/internal/models"
)

// Level classifies one reading. A value equal to a cutoff reaches that cutoff.
func Level(r models.Reading, warn, alert float64) models.Level {
	if !r.Valid || math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return models.LevelOK
	}
	switch {
	case r.Value >= alert:
		return models.LevelAlert
	case r.Value >= warn:
		return models.LevelWarn
	default:
		return models.LevelOK
	}
}

// Overall is the worst of the per-metric levels.
func Overall(cpu, mem, disk models.Level) models.Level {
	worst := cpu
	for _, l := range []models.Level{mem, disk} {
		if l > worst {
			worst = l
		}
	}
	return worst
}

// MetricLevel classifies one metric of s with the sample's own thresholds.
func MetricLevel(s models.InstanceSample, kind models.MetricKind) models.Level {
	warn, alert := s.Thresholds.For(kind)
	return Level(s.Reading(kind), warn, alert)
}

// Sample is the combined level of an instance.
func Sample(s models.InstanceSample) models.Level {
	return Overall(
		MetricLevel(s, models.CPU),
		MetricLevel(s, models.Memory),
		MetricLevel(s, models.Disk),
	)
}
