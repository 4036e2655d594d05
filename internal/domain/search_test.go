package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func site(id, name string) *Entity {
	return &Entity{ID: id, Payload: &Site{Name: name, SiteType: "Solar", Status: "Active"}}
}

func TestFilterEntities_WindQuery(t *testing.T) {
	list := []*Entity{site("1", "Wind Farm"), site("2", "Solar Plant")}

	got := FilterEntities(list, "wind")

	assert.Len(t, got, 1)
	assert.Equal(t, "Wind Farm", got[0].Name())
}

func TestFilterEntities_EmptyQueryIsIdentity(t *testing.T) {
	list := []*Entity{site("1", "Wind Farm"), site("2", "Solar Plant")}

	assert.Equal(t, list, FilterEntities(list, ""))
}

func TestFilterEntities_WhitespaceIsPartOfQuery(t *testing.T) {
	list := []*Entity{site("1", "Wind Farm"), site("2", "Windmill")}

	assert.Empty(t, FilterEntities(list, "   "))

	got := FilterEntities(list, "wind ")
	assert.Len(t, got, 1)
	assert.Equal(t, "Wind Farm", got[0].Name())
}

func TestFilterEntities_ExactlyMatchingSubset(t *testing.T) {
	list := []*Entity{
		{ID: "ts", Payload: &TimeSeries{Name: "Output", Unit: "MW", SiteName: "Storberget", Value: 75.5, Type: SeriesCapacity}},
		{ID: "site", Payload: &Site{Name: "North", Location: "Storberget hill", Status: "Active"}},
		{ID: "asset", Payload: &Asset{Name: "T1", AssetType: "Turbine", SiteName: "Ranasjö", Status: "Offline"}},
		{ID: "whole", Payload: &TimeSeries{Name: "Vindpark", Unit: "MW", Value: 200, Type: SeriesActual}},
	}

	tests := []struct {
		q    string
		want []string
	}{
		{"storberget", []string{"ts", "site"}},
		{"75.5", []string{"ts"}},
		{"200.0", []string{"whole"}},
		{"CAPACITY", []string{"ts"}},
		{"turbine", []string{"asset"}},
		{"offline", []string{"asset"}},
		{"active", []string{"site"}},
		{"nothing-matches", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			got := FilterEntities(list, tt.q)
			ids := make([]string, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMatchesQuery_IgnoresNonSearchFields(t *testing.T) {
	// capacity is a column but not a search field for sites
	e := &Entity{ID: "s", Payload: &Site{Name: "A", Capacity: "unique-capacity"}}
	assert.False(t, MatchesQuery(e, "unique-capacity"))
	assert.False(t, MatchesQuery(nil, "x"))
}
