package models

import "time"

// RatelimitConfig is the database-backed rate limit, in ulule/limiter
// notation (e.g. "5-S" for five requests per second).
type RatelimitConfig struct {
	ConfigKey string    `json:"config_key"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
