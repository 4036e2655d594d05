package domain

import "slices"

// ColumnKind controls how a column value is rendered.
type ColumnKind string

// Column kinds.
const (
	KindText   ColumnKind = "text"
	KindNumber ColumnKind = "number"
	KindDate   ColumnKind = "date"
	KindStatus ColumnKind = "status"
	KindTags   ColumnKind = "tags"
)

// Column is one entry of a collection's ordered column schema.
type Column struct {
	Key     string     `json:"key"`
	Label   string     `json:"label"`
	Kind    ColumnKind `json:"kind"`
	Visible bool       `json:"visible"`
}

func col(label, key string, kind ColumnKind) Column {
	return Column{Key: key, Label: label, Kind: kind, Visible: true}
}

// DefaultColumns returns the column schema a new collection of type t starts with.
// The result is a fresh slice the caller may modify.
func DefaultColumns(t ObjectType) []Column {
	switch t {
	case ObjectTimeSeries:
		return []Column{
			col("Name", "name", KindText),
			col("Site", "site_name", KindText),
			col("Timestamp", "timestamp", KindDate),
			col("Value", "value", KindNumber),
			col("Unit", "unit", KindText),
			col("Type", "type", KindStatus),
		}
	case ObjectSite:
		return []Column{
			col("Name", "name", KindText),
			col("Type", "type", KindStatus),
			col("Capacity", "capacity", KindText),
			col("Status", "status", KindStatus),
		}
	case ObjectAsset:
		return []Column{
			col("Name", "name", KindText),
			col("Type", "type", KindStatus),
			col("Site", "site_name", KindText),
			col("Status", "status", KindStatus),
		}
	}
	return nil
}

// CloneColumns copies a column schema.
func CloneColumns(cols []Column) []Column {
	return slices.Clone(cols)
}
