package models

import "time"

// Carer is a field technician who services pools. The dispatch core reads
// the current location (with its last-update timestamp) and falls back to
// the home base when no live location is known.
type Carer struct {
	ID         string     `json:"id"`
	OrgID      string     `json:"org_id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone,omitempty"`
	Active     bool       `json:"active"`
	CurrentLat *float64   `json:"current_lat,omitempty"`
	CurrentLng *float64   `json:"current_lng,omitempty"`
	LocationAt *time.Time `json:"location_at,omitempty"`
	HomeLat    *float64   `json:"home_lat,omitempty"`
	HomeLng    *float64   `json:"home_lng,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CurrentLocation returns the carer's live location if known.
func (c *Carer) CurrentLocation() *Location {
	if c.CurrentLat == nil || c.CurrentLng == nil {
		return nil
	}
	return &Location{Lat: *c.CurrentLat, Lng: *c.CurrentLng}
}

// HomeBase returns the carer's home-base location if configured.
func (c *Carer) HomeBase() *Location {
	if c.HomeLat == nil || c.HomeLng == nil {
		return nil
	}
	return &Location{Lat: *c.HomeLat, Lng: *c.HomeLng}
}

// StartingLocation picks the routing start: live location first, then home
// base. Returns nil when neither is known.
func (c *Carer) StartingLocation() *Location {
	if loc := c.CurrentLocation(); loc != nil {
		return loc
	}
	return c.HomeBase()
}
