package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies the job function of a tracked user
type Role int

const (
	RoleManager Role = 1
	RoleForeman Role = 2
	RoleLabour  Role = 3
)

func (r Role) String() string {
	switch r {
	case RoleManager:
		return "manager"
	case RoleForeman:
		return "foreman"
	case RoleLabour:
		return "labour"
	default:
		return "unknown"
	}
}

// ParseRole maps the wire representation to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "manager":
		return RoleManager, nil
	case "foreman":
		return RoleForeman, nil
	case "labour":
		return RoleLabour, nil
	default:
		return 0, &ValidationError{Field: "role", Message: fmt.Sprintf("invalid role %q: must be manager, foreman or labour", s)}
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	role, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// RoleColor is the fixed marker color per role used by map clients.
var RoleColor = map[Role]string{
	RoleManager: "red",
	RoleForeman: "amber",
	RoleLabour:  "green",
}

// Coordinates is a WGS84 point in floating point degrees
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks the coordinate ranges.
func (c Coordinates) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return &ValidationError{Field: "coordinates", Message: fmt.Sprintf("invalid latitude %v: must be in [-90, 90]", c.Lat)}
	}
	if c.Lng < -180 || c.Lng > 180 {
		return &ValidationError{Field: "coordinates", Message: fmt.Sprintf("invalid longitude %v: must be in [-180, 180]", c.Lng)}
	}
	return nil
}

// UserLocation is the current known position of a single user.
// One live record per user; a new update fully replaces the prior one.
type UserLocation struct {
	UserID      string      `json:"userId"`
	Role        Role        `json:"role"`
	Coordinates Coordinates `json:"coordinates"`
	ProjectID   string      `json:"projectId,omitempty"`
	UserName    string      `json:"userName,omitempty"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

// ActiveUser is a UserLocation projected with its role color.
// Derived per query, never stored.
type ActiveUser struct {
	UserLocation
	Color string `json:"color"`
}
