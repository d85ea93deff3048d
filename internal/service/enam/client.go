package enam

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

// SourceName tags observations fetched from the eNAM trade feed.
const SourceName = "enam"

// Client fetches daily trade data from the eNAM platform API. eNAM posts
// rows as numbers and ISO dates, unlike the Agmarknet feed.
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

type tradeRow struct {
	Commodity  string  `json:"commodity"`
	Market     string  `json:"apmc"`
	State      string  `json:"state"`
	MinPrice   float64 `json:"min_price"`
	MaxPrice   float64 `json:"max_price"`
	ModalPrice float64 `json:"modal_price"`
	TradeDate  string  `json:"trade_date"`
}

type tradeResponse struct {
	Status string     `json:"status"`
	Data   []tradeRow `json:"data"`
}

func (c *Client) Fetch(ctx context.Context, day time.Time) ([]models.RawObservation, error) {
	var resp tradeResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     c.baseURL + "/trade-data",
		Headers: map[string]string{"Authorization": "Bearer " + c.apiKey},
		Body: map[string]string{
			"state":     c.state,
			"tradeDate": util.FormatDate(day),
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("enam fetch: %w", err)
	}
	if resp.Status != "" && resp.Status != "success" {
		return nil, fmt.Errorf("enam fetch: upstream status %q", resp.Status)
	}

	now := time.Now().UTC()
	out := make([]models.RawObservation, 0, len(resp.Data))
	for _, r := range resp.Data {
		date := r.TradeDate
		if date == "" {
			date = util.FormatDate(day)
		}
		out = append(out, models.RawObservation{
			Commodity:   r.Commodity,
			Market:      r.Market,
			State:       r.State,
			MinPrice:    decimal.NewFromFloat(r.MinPrice),
			MaxPrice:    decimal.NewFromFloat(r.MaxPrice),
			ModalPrice:  decimal.NewFromFloat(r.ModalPrice),
			ArrivalDate: date,
			Source:      SourceName,
			ObservedAt:  now,
		})
	}
	return out, nil
}
