package entities

import "time"

// Favorite is a carpark the user pinned.
type Favorite struct {
	CarparkID string    `json:"carpark_num"`
	Name      string    `json:"development"`
	Area      string    `json:"area"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	AddedAt   time.Time `json:"added_at"`
}

// RecentSearch is a search term the user submitted.
type RecentSearch struct {
	Term      string    `json:"term"`
	Timestamp time.Time `json:"timestamp"`
}

// ResolvedAddress is the result of a reverse-geocode lookup. Both fields are
// nil when the lookup is unavailable.
type ResolvedAddress struct {
	Address    *string `json:"address"`
	PostalCode *string `json:"postal_code"`
}
