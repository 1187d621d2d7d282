package gateway

import (
	"math"
	"time"
)

// reconnectDelay returns the wait before retry number attempt (1-based):
// min(base·factor^(attempt-1), max) plus rnd·jitter, with rnd in [0, 1).
func reconnectDelay(cfg Config, attempt int, rnd float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	exp := float64(cfg.ReconnectBaseDelay) * math.Pow(cfg.ReconnectFactor, float64(attempt-1))
	capped := math.Min(exp, float64(cfg.ReconnectMaxDelay))
	return time.Duration(capped) + time.Duration(rnd*float64(cfg.ReconnectJitter))
}
