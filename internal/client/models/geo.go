package models

import (
	"strconv"
	"strings"
	"time"
)

// Defaults applied to fields the geolocation provider leaves empty.
const (
	UnknownPlace = "Unknown"
	UnknownISP   = "Unknown ISP"
	DefaultLoc   = "0,0"
	DefaultTZ    = "UTC"
)

// IPInfo is the raw ipinfo.io payload.
type IPInfo struct {
	IP       string `json:"ip"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Loc      string `json:"loc"`
	Postal   string `json:"postal"`
	Timezone string `json:"timezone"`
	Org      string `json:"org"`
}

// GeoLocation is the normalized lookup result shown to the user and saved to
// the search history.
type GeoLocation struct {
	IP        string  `json:"ip"`
	City      string  `json:"city"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Loc       string  `json:"loc"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Postal    string  `json:"postal"`
	Timezone  string  `json:"timezone"`
	Org       string  `json:"org"`
	ISP       string  `json:"isp,omitempty"`
	Query     string  `json:"query,omitempty"`
}

// Normalize fills defaults and splits "lat,lon" into coordinates. A malformed
// loc yields zero coordinates.
func (i IPInfo) Normalize() GeoLocation {
	g := GeoLocation{
		IP:       i.IP,
		City:     orDefault(i.City, UnknownPlace),
		Region:   orDefault(i.Region, UnknownPlace),
		Country:  orDefault(i.Country, UnknownPlace),
		Loc:      orDefault(i.Loc, DefaultLoc),
		Postal:   i.Postal,
		Timezone: orDefault(i.Timezone, DefaultTZ),
		Org:      orDefault(i.Org, UnknownISP),
	}
	if lat, lon, ok := strings.Cut(i.Loc, ","); ok {
		g.Latitude, _ = strconv.ParseFloat(strings.TrimSpace(lat), 64)
		g.Longitude, _ = strconv.ParseFloat(strings.TrimSpace(lon), 64)
	}
	return g
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// HistoryItem is one saved lookup.
type HistoryItem struct {
	ID        string      `json:"_id"`
	IP        string      `json:"ip"`
	GeoData   GeoLocation `json:"geoData"`
	CreatedAt time.Time   `json:"createdAt"`
}
