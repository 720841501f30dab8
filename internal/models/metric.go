package models

import "fmt"

// Metric names one plottable measurement of a reading
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricResistor    Metric = "resistor"
)

// Metrics lists every plottable metric in display order
var Metrics = []Metric{MetricTemperature, MetricHumidity, MetricResistor}

// ParseMetric converts a path segment into a Metric
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricTemperature, MetricHumidity, MetricResistor:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("unknown metric %q", s)
	}
}

// Value extracts the metric from a reading
func (m Metric) Value(r *Reading) float64 {
	switch m {
	case MetricHumidity:
		return r.Humidity
	case MetricResistor:
		return r.Resistor
	default:
		return r.Temperature
	}
}

// Unit returns the display unit for the metric
func (m Metric) Unit() string {
	switch m {
	case MetricTemperature:
		return "°C"
	case MetricHumidity:
		return "%"
	default:
		return "Ω"
	}
}
