package agmarknet

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"CropPulse/internal/domain/models"
	drepo "CropPulse/internal/domain/repository"
	xhttp "CropPulse/pkg/http"
	"CropPulse/pkg/util"
)

// SourceName tags observations fetched from the Agmarknet mandi feed.
const SourceName = "agmarknet"

// Client fetches daily mandi price records from the Agmarknet API.
type Client struct {
	baseURL string
	apiKey  string
	state   string
	http    *xhttp.Client
}

func New(baseURL, apiKey, state string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		state:   state,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

var _ drepo.SourceClient = (*Client)(nil)

func (c *Client) Name() string { return SourceName }

// record is the upstream row shape. Prices arrive as strings and dates in
// dd/mm/yyyy.
type record struct {
	Commodity   string `json:"commodity"`
	Variety     string `json:"variety"`
	Grade       string `json:"grade"`
	Market      string `json:"market"`
	State       string `json:"state"`
	MinPrice    string `json:"min_price"`
	MaxPrice    string `json:"max_price"`
	ModalPrice  string `json:"modal_price"`
	ArrivalDate string `json:"arrival_date"`
}

type response struct {
	Records []record `json:"records"`
	Total   int      `json:"total"`
}

// Fetch returns the state's mandi records for the day. Rows with
// unparseable prices are skipped here; band violations are left to the
// normalizer so they are counted as rejections.
func (c *Client) Fetch(ctx context.Context, day time.Time) ([]models.RawObservation, error) {
	var resp response
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/records",
		QueryParams: map[string][]string{
			"api-key":               {c.apiKey},
			"format":                {"json"},
			"filters[state]":        {c.state},
			"filters[arrival_date]": {day.Format("02/01/2006")},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("agmarknet fetch: %w", err)
	}

	now := time.Now().UTC()
	out := make([]models.RawObservation, 0, len(resp.Records))
	for _, r := range resp.Records {
		min, errMin := decimal.NewFromString(r.MinPrice)
		max, errMax := decimal.NewFromString(r.MaxPrice)
		modal, errModal := decimal.NewFromString(r.ModalPrice)
		if errMin != nil || errMax != nil || errModal != nil {
			continue
		}
		date := r.ArrivalDate
		if date == "" {
			date = util.FormatDate(day)
		}
		out = append(out, models.RawObservation{
			Commodity:   r.Commodity,
			Variety:     r.Variety,
			Grade:       r.Grade,
			Market:      r.Market,
			State:       r.State,
			MinPrice:    min,
			MaxPrice:    max,
			ModalPrice:  modal,
			ArrivalDate: date,
			Source:      SourceName,
			ObservedAt:  now,
		})
	}
	return out, nil
}
