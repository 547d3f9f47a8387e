package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Domenick1991/slotbot/internal/domain"
	"github.com/Domenick1991/slotbot/internal/service/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockScheduleUseCase struct {
	mock.Mock
}

func (m *MockScheduleUseCase) ActiveBookings(ctx context.Context, date string) ([]domain.Booking, error) {
	args := m.Called(ctx, date)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockScheduleUseCase) Schedule(ctx context.Context, dates []string) ([]schedule.Day, error) {
	args := m.Called(ctx, dates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schedule.Day), args.Error(1)
}

func (m *MockScheduleUseCase) Upcoming(ctx context.Context) ([]schedule.Day, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schedule.Day), args.Error(1)
}

func TestScheduleHandler_upcoming(t *testing.T) {
	mockSchedule := &MockScheduleUseCase{}
	router := NewRouter(Handlers{Schedule: NewScheduleHandler(mockSchedule, &MockBookingUseCase{})}, nil)

	mockSchedule.On("Upcoming", mock.Anything).Return([]schedule.Day{
		{Date: "2025-06-01", Bookings: []domain.Booking{*sampleBooking(domain.BookingStatusConfirmed)}},
		{Date: "2025-06-02"},
	}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/schedule", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var days []dayResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &days))
	require.Len(t, days, 2)
	assert.Len(t, days[0].Bookings, 1)
	assert.Empty(t, days[1].Bookings)
	mockSchedule.AssertExpectations(t)
}

func TestScheduleHandler_explicitDates(t *testing.T) {
	mockSchedule := &MockScheduleUseCase{}
	router := NewRouter(Handlers{Schedule: NewScheduleHandler(mockSchedule, &MockBookingUseCase{})}, nil)

	mockSchedule.On("Schedule", mock.Anything, []string{"2025-06-03", "2025-06-04"}).
		Return([]schedule.Day{{Date: "2025-06-03"}, {Date: "2025-06-04"}}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/schedule?date=2025-06-03&date=2025-06-04", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	mockSchedule.AssertExpectations(t)
}

func TestScheduleHandler_storeDown(t *testing.T) {
	mockSchedule := &MockScheduleUseCase{}
	router := NewRouter(Handlers{Schedule: NewScheduleHandler(mockSchedule, &MockBookingUseCase{})}, nil)

	mockSchedule.On("Upcoming", mock.Anything).Return(nil, domain.Unavailable(errors.New("connection refused")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/schedule", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "try again later")
}

func TestScheduleHandler_history(t *testing.T) {
	mockBookings := &MockBookingUseCase{}
	router := NewRouter(Handlers{Schedule: NewScheduleHandler(&MockScheduleUseCase{}, mockBookings)}, nil)

	mockBookings.On("UserHistory", mock.Anything, int64(42), 5).
		Return([]domain.Booking{*sampleBooking(domain.BookingStatusCompleted)}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/users/42/bookings?limit=5", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var out []bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "completed", out[0].Status)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/users/abc/bookings", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
