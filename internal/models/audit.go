package models

import "time"

// DeliveryAudit is an append-only record written once per successful delivery
// confirmation. Rows are never updated or deleted by this service.
type DeliveryAudit struct {
	ID          int64     `json:"id"`
	PackageID   int64     `json:"package_id"`
	AgentID     int64     `json:"agent_id"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	DeliveredAt time.Time `json:"delivered_at"`
	ClientIP    string    `json:"client_ip"`
	UserAgent   string    `json:"user_agent"`
}
