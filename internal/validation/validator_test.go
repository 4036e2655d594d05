package validation_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
	"github.com/rebase-energy/workspace-server/internal/validation"
)

type testRequest struct {
	Name        string `json:"name" validate:"notblank,max=200"`
	ObjectType  string `json:"object_type" validate:"required,oneof=TimeSeries Site Asset"`
	AccentColor string `json:"accent_color,omitempty" validate:"omitempty,hexcolor"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(testRequest{Name: "Wind Farms", ObjectType: "Site", AccentColor: "#10b981"})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       testRequest
		wantField string
	}{
		{"blank name", testRequest{Name: "   ", ObjectType: "Site"}, "name"},
		{"empty name", testRequest{Name: "", ObjectType: "Site"}, "name"},
		{"unknown object type", testRequest{Name: "x", ObjectType: "Turbine"}, "object_type"},
		{"bad color", testRequest{Name: "x", ObjectType: "Asset", AccentColor: "green"}, "accent_color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tt.wantField)
		})
	}
}

func TestValidator_Var(t *testing.T) {
	v := validation.New()

	require.NoError(t, v.Var("theme", "Dark", "oneof=Light Dark System"))

	err := v.Var("theme", "Neon", "oneof=Light Dark System")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrValidation))
}
