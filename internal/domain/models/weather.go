package models

import "time"

// WeatherReport is the condensed upstream weather view served to clients.
type WeatherReport struct {
	Location    string    `json:"location"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	TempC       float64   `json:"temp_c"`
	FeelsLikeC  float64   `json:"feels_like_c"`
	Humidity    int       `json:"humidity"`
	WindKmh     float64   `json:"wind_kmh"`
	FetchedAt   time.Time `json:"fetched_at"`
}
