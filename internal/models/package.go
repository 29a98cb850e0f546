package models

import "time"

// Package statuses. A package moves pending -> delivered exactly once and
// never back.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
)

// Package is a delivery unit. The declared Latitude/Longitude describe the
// destination; DeliveredLat/DeliveredLng are the GPS fix captured at
// confirmation time. PhotoURL, DeliveredLat, DeliveredLng, and DeliveredAt are
// set together in one update or not at all.
type Package struct {
	ID           int64      `json:"id"`
	Description  string     `json:"description"`
	Address      string     `json:"address"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	Status       string     `json:"status"`
	AgentID      *int64     `json:"agent_id"`
	PhotoURL     *string    `json:"photo_url"`
	DeliveredLat *float64   `json:"delivered_lat"`
	DeliveredLng *float64   `json:"delivered_lng"`
	DeliveredAt  *time.Time `json:"delivered_at"`
}
