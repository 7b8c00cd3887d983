package enums

import "fmt"

// Metric names a countable resource capped per plan per billing period.
type Metric string

const (
	MetricProducts        Metric = "products"
	MetricBills           Metric = "bills"
	MetricBillingAccounts Metric = "billing_accounts"
)

var validMetrics = []Metric{
	MetricProducts,
	MetricBills,
	MetricBillingAccounts,
}

func (m Metric) String() string {
	return string(m)
}

func (m Metric) IsValid() bool {
	for _, candidate := range validMetrics {
		if candidate == m {
			return true
		}
	}
	return false
}

// Metrics returns every known metric, in declaration order.
func Metrics() []Metric {
	out := make([]Metric, len(validMetrics))
	copy(out, validMetrics)
	return out
}

// ParseMetric converts raw input into a Metric.
func ParseMetric(value string) (Metric, error) {
	for _, candidate := range validMetrics {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid metric %q", value)
}
