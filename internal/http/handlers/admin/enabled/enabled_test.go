package enabled

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/presale-service/internal/gateway"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) SetEnabled(ctx context.Context, enabled bool) error {
	return m.Called(ctx, enabled).Error(0)
}

func TestEnabledHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(m *MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "disable",
			body: `{"enabled":false}`,
			setupMock: func(m *MockService) {
				m.On("SetEnabled", mock.Anything, false).Return(nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"enabled":false`,
		},
		{
			name:           "missing flag",
			body:           `{}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   "field Enabled is a required field",
		},
		{
			name:           "malformed json",
			body:           `{"enabled":"yes"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "offline backend",
			body: `{"enabled":true}`,
			setupMock: func(m *MockService) {
				m.On("SetEnabled", mock.Anything, true).Return(gateway.ErrNotConfigured).Once()
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name: "backend failure",
			body: `{"enabled":true}`,
			setupMock: func(m *MockService) {
				m.On("SetEnabled", mock.Anything, true).Return(errors.New("boom")).Once()
			},
			expectedStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockService)
			tt.setupMock(m)
			w := httptest.NewRecorder()

			New(logger, m).ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/admin/presale/enabled", strings.NewReader(tt.body)))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			m.AssertExpectations(t)
		})
	}
}
