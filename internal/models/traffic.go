package models

import "time"

// TrafficEntry is one per-user counter pair inside a node report.
type TrafficEntry struct {
	Uplink   int64 `json:"uplink"`
	Downlink int64 `json:"downlink"`
}

// TrafficReport maps client emails to counters, as pushed by a node.
type TrafficReport map[string]TrafficEntry

type TrafficLog struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	NodeID        string    `json:"node_id"`
	UplinkBytes   int64     `json:"uplink_bytes"`
	DownlinkBytes int64     `json:"downlink_bytes"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// DailyTraffic holds the running per-day total used for quota checks.
// The date key is a UTC calendar day in YYYY-MM-DD form.
type DailyTraffic struct {
	UserID     int64  `json:"user_id"`
	Date       string `json:"date"`
	TotalBytes int64  `json:"total_bytes"`
}

// TrafficDay formats a timestamp as the UTC day key.
func TrafficDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Client is one authorized entry in a node's client list.
type Client struct {
	ID    string `json:"id"`    // user uuid
	Email string `json:"email"` // deterministic client identifier
}
