package models

import (
	"fmt"
	"strings"
	"time"
)

// SearchCriteria describes one availability search. It is validated once,
// before any navigation, and never mutated during a run.
type SearchCriteria struct {
	// Destination narrows the location multi-select. Empty means no filter.
	Destination string
	UnitSizes   []string
	Guests      int
	CheckIn     time.Time
	CheckOut    time.Time
	MinNights   int
}

// Validate rejects criteria the portal form could never accept.
func (c *SearchCriteria) Validate() error {
	if len(c.UnitSizes) == 0 {
		return fmt.Errorf("criteria: at least one unit size is required")
	}
	for _, s := range c.UnitSizes {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("criteria: empty unit size")
		}
	}
	if c.Guests <= 0 {
		return fmt.Errorf("criteria: guests must be positive, got %d", c.Guests)
	}
	if c.MinNights <= 0 {
		return fmt.Errorf("criteria: minimum nights must be positive, got %d", c.MinNights)
	}
	if c.CheckIn.IsZero() || c.CheckOut.IsZero() {
		return fmt.Errorf("criteria: check-in and check-out dates are required")
	}
	if c.CheckOut.Before(c.CheckIn) {
		return fmt.Errorf("criteria: check-in %s is after check-out %s",
			c.CheckIn.Format("2006-01-02"), c.CheckOut.Format("2006-01-02"))
	}
	return nil
}

// Nights returns the length of the requested stay in nights.
func (c *SearchCriteria) Nights() int {
	return int(c.CheckOut.Sub(c.CheckIn).Hours() / 24)
}
