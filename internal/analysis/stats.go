package analysis

import (
	"gonum.org/v1/gonum/stat"
)

// mean calculates the arithmetic mean of a slice of float64 values
func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// stdDev calculates the sample standard deviation of a slice of float64 values
func stdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}
