package models

// Requests for the HTTP boundaries. Defined in domain for consistency and reuse.

type SubmitObservationsRequest struct {
	Source       string           `json:"source" validate:"required"`
	Observations []RawObservation `json:"observations" validate:"required,min=1,max=5000"`
}

type CurrentPricesRequest struct {
	Commodity string `query:"commodity" json:"commodity" validate:"required"`
	Market    string `query:"market" json:"market"`
	State     string `query:"state" json:"state"`
}

type PriceHistoryRequest struct {
	Commodity string `query:"commodity" json:"commodity" validate:"required"`
	Market    string `query:"market" json:"market" validate:"required"`
	Days      int    `query:"days" json:"days" default:"30" validate:"gte=1,lte=365"`
}

type WeatherRequest struct {
	Location string `query:"location" json:"location" default:"Ranchi" validate:"required"`
}

type CreateRuleRequest struct {
	OwnerID       string  `json:"owner_id" validate:"required"`
	Commodity     string  `json:"commodity" validate:"required"`
	Market        string  `json:"market" validate:"required"`
	Kind          string  `json:"kind" validate:"required,oneof=above below change_percent"`
	Threshold     float64 `json:"threshold" validate:"gte=0"`
	ChangePercent float64 `json:"change_percent" validate:"gte=0,lte=100"`
}

type ListRulesRequest struct {
	OwnerID string `query:"owner_id" json:"owner_id" validate:"required"`
}
