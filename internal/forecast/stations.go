package forecast

import (
	"pm10cast/internal/aqi"
	"pm10cast/internal/models"
)

// Stations groups readings by site name in first-seen order. Coordinates
// come from the first reading of each site.
func Stations(readings []models.Reading) []models.Station {
	index := make(map[string]int)
	var stations []models.Station
	sums := make([]float64, 0)

	for _, r := range readings {
		i, ok := index[r.Site]
		if !ok {
			i = len(stations)
			index[r.Site] = i
			stations = append(stations, models.Station{
				Name:      r.Site,
				Latitude:  r.Latitude,
				Longitude: r.Longitude,
			})
			sums = append(sums, 0)
		}
		stations[i].ReadingCount++
		sums[i] += r.Concentration
	}

	for i := range stations {
		stations[i].MeanPM10 = sums[i] / float64(stations[i].ReadingCount)
		stations[i].AQI = aqi.CalculatePM10(stations[i].MeanPM10)
		stations[i].Category = aqi.Category(stations[i].AQI)
		stations[i].Color = aqi.CategoryColor(stations[i].AQI)
	}
	return stations
}
