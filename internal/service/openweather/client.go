package openweather

import (
	"context"
	"fmt"
	"time"

	"CropPulse/internal/domain/models"
	xhttp "CropPulse/pkg/http"
)

// Client fetches current conditions from the OpenWeatherMap API.
type Client struct {
	baseURL string
	apiKey  string
	http    *xhttp.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type owmResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"` // m/s with metric units
	} `json:"wind"`
}

// Current returns the location's report in metric units.
func (c *Client) Current(ctx context.Context, location string) (models.WeatherReport, error) {
	var resp owmResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/weather",
		QueryParams: map[string][]string{
			"q":     {location},
			"appid": {c.apiKey},
			"units": {"metric"},
		},
	}, &resp)
	if err != nil {
		return models.WeatherReport{}, fmt.Errorf("openweather fetch %s: %w", location, err)
	}

	report := models.WeatherReport{
		Location:   location,
		TempC:      resp.Main.Temp,
		FeelsLikeC: resp.Main.FeelsLike,
		Humidity:   resp.Main.Humidity,
		WindKmh:    resp.Wind.Speed * 3.6,
		FetchedAt:  time.Now().UTC(),
	}
	if resp.Name != "" {
		report.Location = resp.Name
	}
	if len(resp.Weather) > 0 {
		report.Condition = resp.Weather[0].Main
		report.Description = resp.Weather[0].Description
	}
	return report, nil
}
