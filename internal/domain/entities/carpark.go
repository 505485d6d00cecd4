package entities

import (
	"strings"
	"time"
)

// Agency identifies which operator publishes a carpark's availability feed.
type Agency string

const (
	AgencyHDB Agency = "HDB"
	AgencyLTA Agency = "LTA"
	AgencyURA Agency = "URA"
)

// Carpark is a parking facility as returned by one search. ID is unique within
// a result set.
type Carpark struct {
	ID         string  `json:"carpark_num"`
	Name       string  `json:"development"`
	Area       string  `json:"area"`
	Address    string  `json:"address,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	LotCounts
	Agency Agency `json:"agency"`

	HasPricing         bool     `json:"has_pricing"`
	HasSpecificPricing bool     `json:"has_specific_pricing"`
	Pricing            *Pricing `json:"pricing"`

	// CalculatedCost is the authoritative cost from the AI calculator, when present.
	CalculatedCost *float64 `json:"calculated_cost"`
	CostBreakdown  *string  `json:"cost_breakdown"`
	AIExplanation  *string  `json:"ai_explanation,omitempty"`
	AIConfidence   string   `json:"ai_confidence,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// LotCounts holds available lots per vehicle class.
type LotCounts struct {
	Car          int `json:"car_lots"`
	Motorcycle   int `json:"motorcycle_lots"`
	HeavyVehicle int `json:"heavy_vehicle_lots"`
}

// Normalize clamps negative counts to zero.
func (l LotCounts) Normalize() LotCounts {
	return LotCounts{
		Car:          max(l.Car, 0),
		Motorcycle:   max(l.Motorcycle, 0),
		HeavyVehicle: max(l.HeavyVehicle, 0),
	}
}

// Pricing is the free-text rate table of a carpark. None of the strings are
// guaranteed to be machine readable.
type Pricing struct {
	Name                  string `json:"name"`
	WeekdayRate           string `json:"weekday_rate"`
	WeekdayRateAfterHours string `json:"weekday_rate_after_hours,omitempty"`
	SaturdayRate          string `json:"saturday_rate"`
	SundayRate            string `json:"sunday_rate"`
	Note                  string `json:"note,omitempty"`
}

// RateFor picks the rate string that applies to a day type. Weekend days fall
// back to the weekday rate; weekday rates carry the after-hours rate as a suffix.
func (p *Pricing) RateFor(day DayType) string {
	if p == nil {
		return ""
	}
	switch day {
	case DayTypeSaturday:
		if p.SaturdayRate != "" {
			return p.SaturdayRate
		}
		return p.WeekdayRate
	case DayTypeSunday:
		if p.SundayRate != "" {
			return p.SundayRate
		}
		return p.WeekdayRate
	default:
		if p.WeekdayRateAfterHours != "" {
			return p.WeekdayRate + " | After hours: " + p.WeekdayRateAfterHours
		}
		return p.WeekdayRate
	}
}

// Located reports whether the carpark carries coordinates. Feeds leave
// unparseable locations at 0,0, which is never a Singapore carpark.
func (c *Carpark) Located() bool {
	return c.Latitude != 0 || c.Longitude != 0
}

// Clone returns a shallow copy whose pointer fields may be replaced without
// touching the original record.
func (c *Carpark) Clone() *Carpark {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// DayType selects which rate table applies.
type DayType string

const (
	DayTypeWeekday  DayType = "weekday"
	DayTypeSaturday DayType = "saturday"
	DayTypeSunday   DayType = "sunday"
)

// ParseDayType maps user input onto a DayType, defaulting to weekday.
func ParseDayType(s string) DayType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "saturday", "sat":
		return DayTypeSaturday
	case "sunday", "sun", "holiday", "public_holiday":
		return DayTypeSunday
	default:
		return DayTypeWeekday
	}
}

// CostQuote is a cost computed by the AI rate calculator.
type CostQuote struct {
	TotalCost   float64 `json:"total_cost"`
	Breakdown   string  `json:"breakdown"`
	Explanation string  `json:"explanation"`
	Confidence  string  `json:"confidence"`
}
