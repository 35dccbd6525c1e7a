package healthdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2beens/healthdash/internal/telemetry/metrics"
	"github.com/2beens/healthdash/internal/telemetry/tracing"
	"github.com/2beens/healthdash/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// utf8 byte order mark, so Excel opens the Japanese headers correctly
var csvBOM = []byte{0xEF, 0xBB, 0xBF}

type healthDataService interface {
	HealthData(ctx context.Context, filter DateRangeFilter) ([]Observation, error)
	Refresh(ctx context.Context, filter DateRangeFilter) ([]Observation, error)
}

type Handler struct {
	service healthDataService
	metrics *metrics.Manager
	now     func() time.Time
}

func NewHandler(service healthDataService, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		service: service,
		metrics: metricsManager,
		now:     time.Now,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/healthdata", handler.HandleGet).Methods("GET", "OPTIONS").Name("health-data")
	router.HandleFunc("/healthdata/refresh", handler.HandleRefresh).Methods("POST", "OPTIONS").Name("refresh-health-data")
	router.HandleFunc("/healthdata/export", handler.HandleExport).Methods("GET", "OPTIONS").Name("export-health-data")
}

type healthDataResponse struct {
	Range  RangeKind     `json:"range"`
	From   CalendarDay   `json:"from"`
	To     CalendarDay   `json:"to"`
	Metric Metric        `json:"metric"`
	Data   []Observation `json:"data"`
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	handler.serveHealthData(w, r, "healthdata.handleGet", handler.service.HealthData)
}

// HandleRefresh forces a fetch that bypasses the upstream cache - the
// frontend's manual refresh button
func (handler *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	handler.serveHealthData(w, r, "healthdata.handleRefresh", handler.service.Refresh)
}

func (handler *Handler) serveHealthData(
	w http.ResponseWriter,
	r *http.Request,
	spanName string,
	getData func(ctx context.Context, filter DateRangeFilter) ([]Observation, error),
) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), spanName)
	defer span.End()

	filter, err := handler.filterFromRequest(r)
	if err != nil {
		pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	metric := MetricWeight
	if metricParam := r.URL.Query().Get("metric"); metricParam != "" {
		if metric, err = ParseMetric(metricParam); err != nil {
			pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	span.SetAttributes(attribute.String("range", string(filter.Kind)))
	span.SetAttributes(attribute.String("metric", string(metric)))

	data, err := getData(ctx, filter)
	if err != nil {
		log.Errorf("get health data [%s]: %s", filter.Kind, err)
		pkg.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := healthDataResponse{
		Range:  filter.Kind,
		From:   filter.StartDate,
		To:     filter.EndDate,
		Metric: metric,
		Data:   AllMovingAverages(data, metric),
	}

	responseBytes, err := json.Marshal(response)
	if err != nil {
		log.Errorf("marshal health data response: %s", err)
		pkg.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, responseBytes)
}

func (handler *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "healthdata.handleExport")
	defer span.End()

	filter, err := handler.filterFromRequest(r)
	if err != nil {
		pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := handler.service.HealthData(ctx, filter)
	if err != nil {
		log.Errorf("get health data for export [%s]: %s", filter.Kind, err)
		pkg.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterCsvExports.Inc()

	filename := fmt.Sprintf("health-data-%s-%s.csv", filter.StartDate.APIDate(), filter.EndDate.APIDate())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", pkg.ContentType.CSV)

	if _, err := w.Write(csvBOM); err != nil {
		log.Errorf("write csv byte order mark: %s", err)
		return
	}
	if _, err := w.Write([]byte(ConvertToCSV(data))); err != nil {
		log.Errorf("write csv export: %s", err)
	}
}

// filterFromRequest resolves the range and base query parameters into a
// concrete date interval. An unrecognized range value quietly becomes
// month (the dashboard's default), a malformed base date is an error.
func (handler *Handler) filterFromRequest(r *http.Request) (DateRangeFilter, error) {
	kind := ParseRangeKind(r.URL.Query().Get("range"))

	base := handler.now()
	if baseParam := r.URL.Query().Get("base"); baseParam != "" {
		baseDay, err := ParseCalendarDay(baseParam)
		if err != nil {
			return DateRangeFilter{}, fmt.Errorf("invalid base date [%s]: %w", baseParam, err)
		}
		base = baseDay.Time()
	}

	return ComputeDateRange(base, kind), nil
}
