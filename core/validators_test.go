package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitValidators(t *testing.T) {
	validate, translator := NewValidator()

	type payload struct {
		Name    string `json:"name" validate:"required,notblank"`
		Comment string `json:"comment" validate:"omitempty,notblank"`
	}

	tests := []struct {
		name     string
		payload  payload
		wantErrs map[string]string
	}{
		{name: "valid", payload: payload{Name: "Ada"}},
		{name: "required", payload: payload{}, wantErrs: map[string]string{"name": "this field is required"}},
		{
			name:     "blank",
			payload:  payload{Name: " \t", Comment: "  "},
			wantErrs: map[string]string{"name": "name must not be blank", "comment": "comment must not be blank"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.payload)
			if tt.wantErrs == nil {
				assert.NoError(t, err)
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "Struct() error = %v", err)
			got := verrs.Translate(translator)
			for field, msg := range tt.wantErrs {
				assert.Equal(t, msg, got["payload."+field])
			}
			assert.Len(t, got, len(tt.wantErrs))
		})
	}
}
