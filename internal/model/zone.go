package model

import (
	"encoding/json"
	"time"
)

// ZoneType marks a zone as institutional supply or demand.
type ZoneType string

const (
	ZoneSupply ZoneType = "supply"
	ZoneDemand ZoneType = "demand"
)

// ZonePattern is the price shape that formed the zone.
type ZonePattern string

const (
	PatternRBR ZonePattern = "RBR" // Rally-Base-Rally: demand continuation
	PatternDBD ZonePattern = "DBD" // Drop-Base-Drop: supply continuation
	PatternRBD ZonePattern = "RBD" // Rally-Base-Drop: supply reversal
	PatternDBR ZonePattern = "DBR" // Drop-Base-Rally: demand reversal
)

// Zone is a supply or demand zone formed by a base before an explosive move.
type Zone struct {
	ZoneType        ZoneType
	Pattern         ZonePattern
	PriceLow        float64
	PriceHigh       float64
	StartDate       time.Time
	EndDate         time.Time
	Strength        int // 1-10
	Fresh           bool
	TestCount       int
	VolumeConfirmed bool
	MoveSizePct     float64
}

// Midpoint returns the center of the zone.
func (z Zone) Midpoint() float64 { return (z.PriceLow + z.PriceHigh) / 2 }

// Width returns the zone height in price units.
func (z Zone) Width() float64 { return z.PriceHigh - z.PriceLow }

// WidthPct returns the zone height relative to its midpoint, in percent.
func (z Zone) WidthPct() float64 {
	mid := z.Midpoint()
	if mid == 0 {
		return 0
	}
	return z.Width() / mid * 100
}

// MarshalJSON emits the wire format consumed by report renderers.
func (z Zone) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type            ZoneType    `json:"type"`
		Pattern         ZonePattern `json:"pattern"`
		PriceLow        float64     `json:"price_low"`
		PriceHigh       float64     `json:"price_high"`
		Midpoint        float64     `json:"midpoint"`
		WidthPct        float64     `json:"width_pct"`
		StartDate       string      `json:"start_date"`
		EndDate         string      `json:"end_date"`
		Strength        int         `json:"strength"`
		Fresh           bool        `json:"fresh"`
		TestCount       int         `json:"test_count"`
		VolumeConfirmed bool        `json:"volume_confirmed"`
		MoveSizePct     float64     `json:"move_size_pct"`
	}{
		Type:            z.ZoneType,
		Pattern:         z.Pattern,
		PriceLow:        round2(z.PriceLow),
		PriceHigh:       round2(z.PriceHigh),
		Midpoint:        round2(z.Midpoint()),
		WidthPct:        round2(z.WidthPct()),
		StartDate:       z.StartDate.Format(time.RFC3339),
		EndDate:         z.EndDate.Format(time.RFC3339),
		Strength:        z.Strength,
		Fresh:           z.Fresh,
		TestCount:       z.TestCount,
		VolumeConfirmed: z.VolumeConfirmed,
		MoveSizePct:     round2(z.MoveSizePct),
	})
}

// ZoneSummary aggregates supply/demand analysis results for one series.
type ZoneSummary struct {
	CurrentPrice  float64 `json:"current_price"`
	TotalZones    int     `json:"total_zones"`
	DemandZones   []Zone  `json:"demand_zones"`
	SupplyZones   []Zone  `json:"supply_zones"`
	NearestDemand *Zone   `json:"nearest_demand"`
	NearestSupply *Zone   `json:"nearest_supply"`
	FreshZones    []Zone  `json:"fresh_zones"`
}
