package models

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// ThresholdSet holds warn/alert cutoffs in percent. Warn values above their
// alert counterpart are accepted as is.
type ThresholdSet struct {
	CPUWarn   float64 `json:"cpu_warn"`
	CPUAlert  float64 `json:"cpu_alert"`
	MemWarn   float64 `json:"mem_warn"`
	MemAlert  float64 `json:"mem_alert"`
	DiskWarn  float64 `json:"disk_warn"`
	DiskAlert float64 `json:"disk_alert"`
}

// Crossed reports the metric kinds whose warn cutoff is above the alert cutoff.
func (t ThresholdSet) Crossed() []MetricKind {
	var out []MetricKind
	for _, k := range MetricKinds {
		w, a := t.For(k)
		if w > a {
			out = append(out, k)
		}
	}
	return out
}

// For returns the warn and alert cutoffs for one metric kind.
func (t ThresholdSet) For(kind MetricKind) (warn, alert float64) {
	switch kind {
	case CPU:
		return t.CPUWarn, t.CPUAlert
	case Memory:
		return t.MemWarn, t.MemAlert
	case Disk:
		return t.DiskWarn, t.DiskAlert
	}
	return math.Inf(1), math.Inf(1)
}

type MetricKind string

const (
	CPU    MetricKind = "cpu"
	Memory MetricKind = "mem"
	Disk   MetricKind = "disk"
)

var MetricKinds = []MetricKind{CPU, Memory, Disk}

// Reading is a nullable utilization percentage. The zero value is None.
type Reading struct {
	Value float64
	Valid bool
}

var None = Reading{}

func Some(v float64) Reading {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return None
	}
	return Reading{Value: v, Valid: true}
}

func (r Reading) String() string {
	if !r.Valid {
		return "N/A"
	}
	return fmt.Sprintf("%.0f%%", r.Value)
}

func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, r.Value, 'f', -1, 64), nil
}

// Instance is one inventory record.
type Instance struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Region string            `json:"region"`
	Zone   string            `json:"zone,omitempty"`
	State  string            `json:"state,omitempty"`
	Type   string            `json:"instance_type,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// InstanceSample is the per-run utilization snapshot of one instance.
type InstanceSample struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	CPU        Reading      `json:"cpu"`
	Mem        Reading      `json:"mem"`
	Disk       Reading      `json:"disk"`
	Thresholds ThresholdSet `json:"thresholds"`
	Region     string       `json:"region"`
}

func (s InstanceSample) Reading(kind MetricKind) Reading {
	switch kind {
	case CPU:
		return s.CPU
	case Memory:
		return s.Mem
	case Disk:
		return s.Disk
	}
	return None
}

type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// NewMetricPoint normalizes ts to UTC whole seconds.
func NewMetricPoint(ts time.Time, v float64) MetricPoint {
	return MetricPoint{Timestamp: ts.UTC().Truncate(time.Second), Value: v}
}

// Summary is the result of one check invocation.
type Summary struct {
	OK         bool   `json:"ok"`
	RunID      string `json:"run_id,omitempty"`
	Instances  int    `json:"instances"`
	AlertsSent int    `json:"alerts_sent,omitempty"`
	Skipped    string `json:"skipped,omitempty"`
}
