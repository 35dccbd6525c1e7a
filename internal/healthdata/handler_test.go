package healthdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/2beens/healthdash/internal/telemetry/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHealthDataService struct {
	data         []Observation
	err          error
	lastFilter   DateRangeFilter
	refreshCalls int
}

func (f *fakeHealthDataService) HealthData(_ context.Context, filter DateRangeFilter) ([]Observation, error) {
	f.lastFilter = filter
	return f.data, f.err
}

func (f *fakeHealthDataService) Refresh(_ context.Context, filter DateRangeFilter) ([]Observation, error) {
	f.refreshCalls++
	f.lastFilter = filter
	return f.data, f.err
}

func newTestHandler(service *fakeHealthDataService) *Handler {
	handler := NewHandler(service, metrics.NewTestManager())
	handler.now = func() time.Time {
		return time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	}
	return handler
}

func TestHandler_HandleGet(t *testing.T) {
	service := &fakeHealthDataService{
		data: []Observation{
			{Date: marchDay(14), Weight: floatPtr(70.5), BodyFat: floatPtr(15.2)},
			{Date: marchDay(15), Weight: floatPtr(70.1)},
		},
	}
	handler := newTestHandler(service)

	req := httptest.NewRequest("GET", "/healthdata?range=week", nil)
	rr := httptest.NewRecorder()
	handler.HandleGet(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp healthDataResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, RangeWeek, resp.Range)
	assert.Equal(t, CalendarDay{2024, time.March, 8}, resp.From)
	assert.Equal(t, CalendarDay{2024, time.March, 15}, resp.To)
	assert.Equal(t, MetricWeight, resp.Metric)
	require.Len(t, resp.Data, 2)
	require.NotNil(t, resp.Data[0].Weight)
	assert.Equal(t, 70.5, *resp.Data[0].Weight)

	assert.Equal(t, RangeWeek, service.lastFilter.Kind)
	assert.Equal(t, 0, service.refreshCalls)
}

func TestHandler_HandleGet_DefaultsToMonth(t *testing.T) {
	service := &fakeHealthDataService{}
	handler := newTestHandler(service)

	req := httptest.NewRequest("GET", "/healthdata?range=whatever", nil)
	rr := httptest.NewRecorder()
	handler.HandleGet(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, RangeMonth, service.lastFilter.Kind)
	assert.Equal(t, CalendarDay{2024, time.February, 15}, service.lastFilter.StartDate)
}

func TestHandler_HandleGet_BaseParam(t *testing.T) {
	service := &fakeHealthDataService{}
	handler := newTestHandler(service)

	req := httptest.NewRequest("GET", "/healthdata?range=week&base=20240110", nil)
	rr := httptest.NewRecorder()
	handler.HandleGet(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, CalendarDay{2024, time.January, 3}, service.lastFilter.StartDate)
	assert.Equal(t, CalendarDay{2024, time.January, 10}, service.lastFilter.EndDate)
}

func TestHandler_HandleGet_InvalidBase(t *testing.T) {
	handler := newTestHandler(&fakeHealthDataService{})

	req := httptest.NewRequest("GET", "/healthdata?base=2024-01-10", nil)
	rr := httptest.NewRecorder()
	handler.HandleGet(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid base date")
}

func TestHandler_HandleGet_Metric(t *testing.T) {
	service := &fakeHealthDataService{
		data: []Observation{
			{Date: marchDay(15), Weight: floatPtr(70.1), BodyFat: floatPtr(15.2)},
		},
	}
	handler := newTestHandler(service)

	req := httptest.NewRequest("GET", "/healthdata?metric=bodyFat", nil)
	rr := httptest.NewRecorder()
	handler.HandleGet(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp healthDataResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, MetricBodyFat, resp.Metric)

	req = httptest.NewRequest("GET", "/healthdata?metric=bmi", nil)
	rr = httptest.NewRecorder()
	handler.HandleGet(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown metric")
}

func TestHandler_HandleGet_ServiceError(t *testing.T) {
	handler := newTestHandler(&fakeHealthDataService{
		err: errors.New("upstream exploded"),
	})

	req := httptest.NewRequest("GET", "/healthdata", nil)
	rr := httptest.NewRecorder()
	handler.HandleGet(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "upstream exploded")
}

func TestHandler_HandleRefresh(t *testing.T) {
	service := &fakeHealthDataService{}
	handler := newTestHandler(service)

	req := httptest.NewRequest("POST", "/healthdata/refresh?range=week", nil)
	rr := httptest.NewRecorder()
	handler.HandleRefresh(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, service.refreshCalls)
}

func TestHandler_HandleExport(t *testing.T) {
	service := &fakeHealthDataService{
		data: []Observation{
			{Date: marchDay(1), Weight: floatPtr(70.5), BodyFat: floatPtr(15.2)},
			{Date: marchDay(3), BodyFat: floatPtr(15.0)},
		},
	}
	handler := newTestHandler(service)

	req := httptest.NewRequest("GET", "/healthdata/export?range=month", nil)
	rr := httptest.NewRecorder()
	handler.HandleExport(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(
		t,
		`attachment; filename="health-data-20240215-20240315.csv"`,
		rr.Header().Get("Content-Disposition"),
	)

	body := rr.Body.Bytes()
	require.True(t, bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}))

	csv := string(bytes.TrimPrefix(body, []byte{0xEF, 0xBB, 0xBF}))
	assert.Equal(
		t,
		"日付,体重(kg),体脂肪率(%)\n2024/3/1,70.5,15.2\n2024/3/3,,15.0",
		csv,
	)
}

func TestHandler_HandleExport_ServiceError(t *testing.T) {
	handler := newTestHandler(&fakeHealthDataService{
		err: errors.New("upstream exploded"),
	})

	req := httptest.NewRequest("GET", "/healthdata/export", nil)
	rr := httptest.NewRecorder()
	handler.HandleExport(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
