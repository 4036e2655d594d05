package domain

import (
	"encoding/json/jsontext"
	"encoding/json/v2"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// SeriesType classifies a time series.
type SeriesType string

// Series types.
const (
	SeriesActual   SeriesType = "actual"
	SeriesForecast SeriesType = "forecast"
	SeriesCapacity SeriesType = "capacity"
)

// Valid reports whether s is a known series type.
func (s SeriesType) Valid() bool {
	switch s {
	case SeriesActual, SeriesForecast, SeriesCapacity:
		return true
	}
	return false
}

// Payload is the variant-specific body of an Entity.
// It is implemented only by *TimeSeries, *Site and *Asset.
type Payload interface {
	ObjectType() ObjectType
	DisplayName() string
	// SearchFields returns the values a free-text query is matched against.
	SearchFields() []string
	// ColumnValue renders the value shown under a column key.
	ColumnValue(key string) string
	applyDefaults()
}

// TimeSeries describes a measured or forecast series at a site.
type TimeSeries struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Unit        string     `json:"unit"`
	SiteName    string     `json:"site_name"`
	Timestamp   string     `json:"timestamp"`
	Value       float64    `json:"value"`
	Type        SeriesType `json:"type"`
	Tags        []string   `json:"tags"`
}

// Site is a physical generation or consumption location.
type Site struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SiteType    string   `json:"site_type"`
	Capacity    string   `json:"capacity"`
	Status      string   `json:"status"`
	Location    string   `json:"location"`
	Tags        []string `json:"tags"`
}

// Asset is a piece of equipment, optionally located at a site.
type Asset struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	AssetType   string   `json:"asset_type"`
	SiteID      string   `json:"site_id"`
	SiteName    string   `json:"site_name"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
}

// ObjectType implements Payload.
func (*TimeSeries) ObjectType() ObjectType { return ObjectTimeSeries }

// ObjectType implements Payload.
func (*Site) ObjectType() ObjectType { return ObjectSite }

// ObjectType implements Payload.
func (*Asset) ObjectType() ObjectType { return ObjectAsset }

// DisplayName implements Payload.
func (t *TimeSeries) DisplayName() string { return t.Name }

// DisplayName implements Payload.
func (s *Site) DisplayName() string { return s.Name }

// DisplayName implements Payload.
func (a *Asset) DisplayName() string { return a.Name }

// SearchFields implements Payload.
func (t *TimeSeries) SearchFields() []string {
	return []string{t.Name, t.Description, t.Unit, t.SiteName, formatValue(t.Value), string(t.Type)}
}

// SearchFields implements Payload.
func (s *Site) SearchFields() []string {
	return []string{s.Name, s.Description, s.SiteType, s.Location, s.Status}
}

// SearchFields implements Payload.
func (a *Asset) SearchFields() []string {
	return []string{a.Name, a.Description, a.AssetType, a.SiteName, a.Status}
}

// ColumnValue implements Payload.
func (t *TimeSeries) ColumnValue(key string) string {
	switch key {
	case "name":
		return t.Name
	case "description":
		return t.Description
	case "unit":
		return t.Unit
	case "site_name":
		return t.SiteName
	case "timestamp":
		return t.Timestamp
	case "value":
		return formatValue(t.Value)
	case "type":
		return string(t.Type)
	case "tags":
		return strings.Join(t.Tags, ", ")
	}
	return ""
}

// ColumnValue implements Payload.
func (s *Site) ColumnValue(key string) string {
	switch key {
	case "name":
		return s.Name
	case "description":
		return s.Description
	case "type", "site_type":
		return s.SiteType
	case "capacity":
		return s.Capacity
	case "status":
		return s.Status
	case "location":
		return s.Location
	case "tags":
		return strings.Join(s.Tags, ", ")
	}
	return ""
}

// ColumnValue implements Payload.
func (a *Asset) ColumnValue(key string) string {
	switch key {
	case "name":
		return a.Name
	case "description":
		return a.Description
	case "type", "asset_type":
		return a.AssetType
	case "site_id":
		return a.SiteID
	case "site_name":
		return a.SiteName
	case "status":
		return a.Status
	case "tags":
		return strings.Join(a.Tags, ", ")
	}
	return ""
}

func (t *TimeSeries) applyDefaults() {
	t.Name = strings.TrimSpace(t.Name)
	if t.Unit == "" {
		t.Unit = "kW"
	}
	if t.Type == "" {
		t.Type = SeriesActual
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
}

func (s *Site) applyDefaults() {
	s.Name = strings.TrimSpace(s.Name)
	if s.SiteType == "" {
		s.SiteType = "Wind"
	}
	if s.Status == "" {
		s.Status = "Active"
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
}

func (a *Asset) applyDefaults() {
	a.Name = strings.TrimSpace(a.Name)
	if a.Status == "" {
		a.Status = "Active"
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
}

// formatValue renders whole numbers with a trailing ".0" (150 is "150.0"),
// the form values were always displayed and searched in.
func formatValue(v float64) string {
	out := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) || strings.Contains(out, ".") {
		return out
	}
	return out + ".0"
}

// NormalizePayload trims the name and fills variant defaults in place.
func NormalizePayload(p Payload) {
	p.applyDefaults()
}

// ValidatePayload checks the fields every variant requires.
func ValidatePayload(p Payload) error {
	if p == nil {
		return fmt.Errorf("payload is required")
	}
	if strings.TrimSpace(p.DisplayName()) == "" {
		return fmt.Errorf("name is required")
	}
	switch v := p.(type) {
	case *TimeSeries:
		if v.Type != "" && !v.Type.Valid() {
			return fmt.Errorf("type must be one of actual, forecast, capacity")
		}
	case *Site, *Asset:
	default:
		return fmt.Errorf("unsupported payload %T", p)
	}
	return nil
}

// NewPayload returns an empty payload of the given type.
func NewPayload(t ObjectType) (Payload, error) {
	switch t {
	case ObjectTimeSeries:
		return &TimeSeries{}, nil
	case ObjectSite:
		return &Site{}, nil
	case ObjectAsset:
		return &Asset{}, nil
	}
	return nil, fmt.Errorf("unknown object type %q", t)
}

// ClonePayload returns a deep copy of p.
func ClonePayload(p Payload) Payload {
	switch v := p.(type) {
	case *TimeSeries:
		c := *v
		c.Tags = slices.Clone(v.Tags)
		return &c
	case *Site:
		c := *v
		c.Tags = slices.Clone(v.Tags)
		return &c
	case *Asset:
		c := *v
		c.Tags = slices.Clone(v.Tags)
		return &c
	}
	return nil
}

// EncodePayload serializes the variant body as stored in the data column.
func EncodePayload(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

// DecodePayload parses a stored data column for the given type.
func DecodePayload(t ObjectType, data []byte) (Payload, error) {
	p, err := NewPayload(t)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
	}
	p.applyDefaults()
	return p, nil
}

// Entity is a typed record that may belong to any number of collections.
type Entity struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ID          string
	WorkspaceID string
	Payload     Payload
}

// Type returns the entity's object type.
func (e *Entity) Type() ObjectType {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.ObjectType()
}

// Name returns the entity's display name.
func (e *Entity) Name() string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.DisplayName()
}

// Clone returns a deep copy so cached entities are never shared with callers.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	if e.Payload != nil {
		c.Payload = ClonePayload(e.Payload)
	}
	return &c
}

// entityWire is the stored and transmitted row shape.
type entityWire struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id"`
	EntityType  ObjectType     `json:"entity_type"`
	Data        jsontext.Value `json:"data"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// MarshalJSON encodes the entity as {id, workspace_id, entity_type, data, ...}.
func (e Entity) MarshalJSON() ([]byte, error) {
	data, err := EncodePayload(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entityWire{
		ID:          e.ID,
		WorkspaceID: e.WorkspaceID,
		EntityType:  e.Type(),
		Data:        data,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	})
}

// UnmarshalJSON decodes the row shape produced by MarshalJSON.
func (e *Entity) UnmarshalJSON(b []byte) error {
	var w entityWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	p, err := DecodePayload(w.EntityType, w.Data)
	if err != nil {
		return err
	}
	*e = Entity{
		ID:          w.ID,
		WorkspaceID: w.WorkspaceID,
		Payload:     p,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
	return nil
}
