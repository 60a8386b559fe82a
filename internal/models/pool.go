package models

import "time"

// Pool is a serviced swimming pool. Pools without coordinates cannot be
// distance-optimized and are treated as zero-distance stops by dispatch.
type Pool struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	ClientID  string    `json:"client_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Lat       *float64  `json:"lat,omitempty"`
	Lng       *float64  `json:"lng,omitempty"`
	VolumeL   *int      `json:"volume_l,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location returns the pool's coordinates if geocoded.
func (p *Pool) Location() *Location {
	if p.Lat == nil || p.Lng == nil {
		return nil
	}
	return &Location{Lat: *p.Lat, Lng: *p.Lng}
}

// CreatePoolRequest registers a pool. When no coordinates are supplied the
// address is geocoded; a provider failure there is surfaced to the caller.
type CreatePoolRequest struct {
	ClientID string   `json:"client_id" validate:"required,uuid"`
	Name     string   `json:"name" validate:"required"`
	Address  string   `json:"address" validate:"required"`
	Lat      *float64 `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng      *float64 `json:"lng,omitempty" validate:"omitempty,longitude"`
	VolumeL  *int     `json:"volume_l,omitempty" validate:"omitempty,gt=0"`
	Notes    string   `json:"notes,omitempty"`
}

// UpdatePoolRequest updates mutable pool fields.
type UpdatePoolRequest struct {
	Name    *string  `json:"name,omitempty"`
	Address *string  `json:"address,omitempty"`
	Lat     *float64 `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng     *float64 `json:"lng,omitempty" validate:"omitempty,longitude"`
	VolumeL *int     `json:"volume_l,omitempty" validate:"omitempty,gt=0"`
	Notes   *string  `json:"notes,omitempty"`
}
