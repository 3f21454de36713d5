package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "gentree/pkg/errors"
)

type sample struct {
	PersonID  string  `validate:"required"`
	FirstName string  `validate:"notblank"`
	OtherID   string  `validate:"nefield=PersonID"`
	Scale     float64 `validate:"gt=0"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name       string
		input      sample
		wantFields []string
	}{
		{name: "valid", input: sample{PersonID: "a", FirstName: "Ann", OtherID: "b", Scale: 1}},
		{name: "missing id", input: sample{FirstName: "Ann", OtherID: "b", Scale: 1}, wantFields: []string{"personID"}},
		{name: "blank name", input: sample{PersonID: "a", FirstName: "   ", OtherID: "b", Scale: 1}, wantFields: []string{"firstName"}},
		{name: "same ids and bad scale", input: sample{PersonID: "a", FirstName: "Ann", OtherID: "a"}, wantFields: []string{"otherID", "scale"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))

			appErr := pkgerrors.GetAppError(err)
			fields, ok := appErr.Details["fields"].(map[string]interface{})
			require.True(t, ok)
			for _, f := range tt.wantFields {
				assert.Contains(t, fields, f)
			}
		})
	}
}
