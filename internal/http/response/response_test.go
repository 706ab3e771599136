package response

import (
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOKWithData(t *testing.T) {
	data := map[string]string{"key": "value"}
	resp := OKWithData(data)

	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, data, resp.Data)
}

func TestError(t *testing.T) {
	resp := Error("something went wrong")

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "something went wrong", resp.Error)
}

func TestErrorWithData(t *testing.T) {
	resp := ErrorWithData("Insufficient USDT balance", map[string]string{"status": "insufficient_funds"})

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "Insufficient USDT balance", resp.Error)
	assert.NotNil(t, resp.Data)
}

func TestValidationError(t *testing.T) {
	type TestStruct struct {
		Amount    string `validate:"required"`
		Price     string `validate:"numeric"`
		SurfaceID string `validate:"omitempty,uuid"`
	}

	err := validator.New().Struct(TestStruct{Price: "cheap", SurfaceID: "abc"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))

	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field Amount is a required field")
	assert.Contains(t, resp.Error, "field Price can contain only numbers")
	assert.Contains(t, resp.Error, "field SurfaceID can contain only uuid")
}

func TestInvalidRequest(t *testing.T) {
	type TestStruct struct {
		Amount string `validate:"required"`
	}

	tests := []struct {
		name    string
		err     error
		wantErr string
	}{
		{
			name:    "validation errors are described per field",
			err:     validator.New().Struct(TestStruct{}),
			wantErr: "field Amount is a required field",
		},
		{
			name:    "non-struct input gets a generic message",
			err:     validator.New().Struct(nil),
			wantErr: "invalid request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			resp := InvalidRequest(tt.err)
			assert.Equal(t, StatusError, resp.Status)
			assert.Equal(t, tt.wantErr, resp.Error)
		})
	}
}
