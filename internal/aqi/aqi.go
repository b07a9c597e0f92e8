// Package aqi converts 24-hour PM10 concentrations (µg/m³) into EPA Air
// Quality Index values and categories.
package aqi

import "math"

type breakpoint struct {
	cLow, cHigh float64
	iLow, iHigh float64
}

// EPA 24-hour PM10 breakpoints, concentrations truncated to whole µg/m³
var pm10Breakpoints = []breakpoint{
	{0, 54, 0, 50},
	{55, 154, 51, 100},
	{155, 254, 101, 150},
	{255, 354, 151, 200},
	{355, 424, 201, 300},
	{425, 504, 301, 400},
	{505, 604, 401, 500},
}

// CalculatePM10 returns the AQI for a PM10 concentration
func CalculatePM10(pm10 float64) int32 {
	if pm10 < 0 || math.IsNaN(pm10) {
		return 0
	}

	pm := math.Floor(pm10)
	for _, bp := range pm10Breakpoints {
		if pm <= bp.cHigh {
			// I = (I_high - I_low) / (C_high - C_low) * (C - C_low) + I_low
			aqi := ((bp.iHigh-bp.iLow)/(bp.cHigh-bp.cLow))*(pm-bp.cLow) + bp.iLow
			return int32(math.Round(aqi))
		}
	}
	return 500
}

// Category returns the AQI category name
func Category(aqi int32) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive Groups"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}

// CategoryColor returns the standard EPA colour for an AQI value
func CategoryColor(aqi int32) string {
	switch {
	case aqi <= 50:
		return "#00e400" // green
	case aqi <= 100:
		return "#ffff00" // yellow
	case aqi <= 150:
		return "#ff7e00" // orange
	case aqi <= 200:
		return "#ff0000" // red
	case aqi <= 300:
		return "#8f3f97" // purple
	default:
		return "#7e0023" // maroon
	}
}
