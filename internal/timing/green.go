package timing

import "time"

// GreenFor computes the green duration for a vehicle count: a startup base
// plus a fixed increment per queued vehicle, clamped to the configured
// bounds. Negative counts are treated as zero so a bad reading can never
// shorten a green below the minimum.
func (c *Config) GreenFor(count int) time.Duration {
	if count < 0 {
		count = 0
	}
	d := c.GetStartupGreen() + time.Duration(count)*c.GetPerVehicle()
	if min := c.GetMinGreen(); d < min {
		return min
	}
	if max := c.GetMaxGreen(); d > max {
		return max
	}
	return d
}
