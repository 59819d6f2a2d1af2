package market

import (
	"fmt"
	"os"
	"time"

	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/store"
)

// NewPriceSource returns the configured bar source.
func NewPriceSource(cfg *store.Config) (interfaces.PriceSource, error) {
	ttl := time.Duration(cfg.Market.CacheTTLHours) * time.Hour
	cache := NewBarCache(cfg.Paths.Cache, ttl)

	switch cfg.Market.Source {
	case "STATIC":
		return NewStaticSource(), nil
	case "POLYGON":
		return NewPolygonSource(os.Getenv("POLYGON_API_KEY"), cfg.Market.SymbolMap,
			WithCache(cache),
			WithRateLimiter(NewRateLimiter(cfg.Market.RateLimitPerMinute)),
		), nil
	case "KITE":
		apiKey, token := os.Getenv("KITE_API_KEY"), os.Getenv("KITE_ACCESS_TOKEN")
		if apiKey == "" || token == "" {
			return nil, fmt.Errorf("KITE_API_KEY and KITE_ACCESS_TOKEN must be set for market.source KITE")
		}
		return NewKiteSource(apiKey, token, cfg.Market.KiteInstruments, cache), nil
	}
	return nil, fmt.Errorf("unknown market source %q", cfg.Market.Source)
}

// NewSnapshotBuilder wires the price source and, when enabled, the calendar.
func NewSnapshotBuilder(cfg *store.Config, prices interfaces.PriceSource) *Builder {
	var cal interfaces.CalendarSource
	if cfg.Calendar.Enabled {
		cal = NewCalendar(cfg.Calendar.URL, cfg.Calendar.Currencies, time.Duration(cfg.Calendar.TimeoutSeconds)*time.Second)
	}
	return NewBuilder(cfg.Symbol, prices, cal, cfg.Market.Intermarket, cfg.Market.LookbackDays)
}
