package domain

import "strings"

// ObjectType discriminates the entity variants a collection can hold.
type ObjectType string

// Object types.
const (
	ObjectTimeSeries ObjectType = "TimeSeries"
	ObjectSite       ObjectType = "Site"
	ObjectAsset      ObjectType = "Asset"
)

// ObjectTypes lists every object type in display order.
var ObjectTypes = []ObjectType{ObjectTimeSeries, ObjectSite, ObjectAsset}

// ParseObjectType accepts the canonical names case-insensitively, plus the
// plural forms used by the navigation menu ("Sites", "Assets").
func ParseObjectType(s string) (ObjectType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "timeseries", "time_series", "time-series":
		return ObjectTimeSeries, true
	case "site", "sites":
		return ObjectSite, true
	case "asset", "assets":
		return ObjectAsset, true
	}
	return "", false
}

// Valid reports whether t is a known object type.
func (t ObjectType) Valid() bool {
	switch t {
	case ObjectTimeSeries, ObjectSite, ObjectAsset:
		return true
	}
	return false
}

// ViewType selects how a collection is rendered.
type ViewType string

// View types. The card grid keeps its historical wire name.
const (
	ViewTable    ViewType = "table"
	ViewCardGrid ViewType = "time_series_cards"
)

// Valid reports whether v is a known view type.
func (v ViewType) Valid() bool {
	return v == ViewTable || v == ViewCardGrid
}
