package cache

import "fmt"

// Categories scope cached reads; each carries its own TTL.
const (
	CategoryPrices  = "prices"
	CategoryWeather = "weather"
	CategorySchemes = "schemes"
)

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// GenerateKeyWithParams creates a cache key with multiple parameters.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	key := prefix
	for _, param := range params {
		key = fmt.Sprintf("%s:%v", key, param)
	}
	return key
}

// SeriesKey is the prices key for one (commodity, market) series.
func SeriesKey(commodity, market string) string {
	return GenerateKeyWithParams("series", commodity, market)
}

// CommodityKey is the prices key for a commodity's aggregate view across markets.
func CommodityKey(commodity string) string {
	return GenerateKey("commodity", commodity)
}

// HistoryKey is the prices key for a series range read.
func HistoryKey(commodity, market string, days int) string {
	return GenerateKeyWithParams("history", commodity, market, days)
}

// BuildPattern creates a Redis pattern for key matching.
func BuildPattern(prefix string) string {
	return fmt.Sprintf("%s*", prefix)
}
