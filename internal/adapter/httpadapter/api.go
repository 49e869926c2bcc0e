package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/crime-incident-etl/internal/domain"
	"github.com/couchcryptid/crime-incident-etl/internal/observability"
	"github.com/couchcryptid/crime-incident-etl/internal/session"
)

const metricsSource = "http"

// API serves the JSON endpoints the presentation layer renders.
type API struct {
	store          *session.Store
	geocoder       domain.Geocoder
	metrics        *observability.Metrics
	logger         *slog.Logger
	validate       *validator.Validate
	rng            domain.IntSource
	tolerance      float64
	maxUploadBytes int64
}

// APIConfig carries the tunables of the API.
type APIConfig struct {
	Tolerance      float64
	MaxUploadBytes int64
	// Geocoder labels centroids; nil disables enrichment.
	Geocoder domain.Geocoder
	// Random fills generated indicator tables; nil uses domain.DefaultSource.
	Random domain.IntSource
}

// NewAPI creates the session API.
func NewAPI(store *session.Store, cfg APIConfig, metrics *observability.Metrics, logger *slog.Logger) *API {
	rng := cfg.Random
	if rng == nil {
		rng = domain.DefaultSource
	}
	return &API{
		store:          store,
		geocoder:       cfg.Geocoder,
		metrics:        metrics,
		logger:         logger,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		rng:            rng,
		tolerance:      cfg.Tolerance,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// Register mounts the API routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/sessions", a.handleCreateSession)
	mux.HandleFunc("GET /v1/sessions/{id}", a.handleGetSession)
	mux.HandleFunc("PUT /v1/sessions/{id}/dataset", a.handleUploadDataset)
	mux.HandleFunc("GET /v1/sessions/{id}/options", a.handleOptions)
	mux.HandleFunc("GET /v1/sessions/{id}/views/histogram", a.handleHistogram)
	mux.HandleFunc("GET /v1/sessions/{id}/views/timeseries", a.handleTimeSeries)
	mux.HandleFunc("GET /v1/sessions/{id}/views/centroid", a.handleCentroid)
	mux.HandleFunc("GET /v1/sessions/{id}/views/points", a.handlePoints)
	mux.HandleFunc("POST /v1/sessions/{id}/quiz", a.handleStartQuiz)
	mux.HandleFunc("POST /v1/sessions/{id}/quiz/check", a.handleCheckQuiz)
}

func (a *API) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	st := a.store.Create()
	a.logger.Debug("session created", "session", st.ID)
	writeJSON(w, http.StatusCreated, toSessionResponse(st))
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	st, err := a.store.Get(r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(st))
}

func (a *API) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := a.store.Get(id); err != nil {
		a.writeError(w, err)
		return
	}

	source := r.URL.Query().Get("filename")
	if source == "" {
		source = "upload.csv"
	}

	ds, err := domain.Normalize(http.MaxBytesReader(w, r.Body, a.maxUploadBytes))
	if err != nil {
		var schemaErr *domain.SchemaError
		if errors.As(err, &schemaErr) {
			a.metrics.ObserveSchemaError(metricsSource)
		}
		a.writeError(w, err)
		return
	}
	a.metrics.ObserveUpload(metricsSource, ds.Stats)

	if _, err := a.store.SetDataset(id, ds, source); err != nil {
		a.writeError(w, err)
		return
	}
	a.logger.Info("dataset replaced",
		"session", id,
		"source", source,
		"rows_read", ds.Stats.RowsRead,
		"retained", ds.Stats.Retained,
	)
	writeJSON(w, http.StatusOK, datasetResponse{Source: source, Stats: ds.Stats})
}

func (a *API) handleOptions(w http.ResponseWriter, r *http.Request) {
	ds, err := a.dataset(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Options(ds.Records))
}

func (a *API) handleHistogram(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("by")
	if by == "" {
		by = string(domain.DimensionSector)
	}
	dim, err := domain.ParseDimension(by)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	records, filter, err := a.selection(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, histogramResponse{
		Dimension: dim,
		Filter:    filter,
		Buckets:   domain.Histogram(records, dim),
	})
}

func (a *API) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	records, filter, err := a.selection(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timeSeriesResponse{Filter: filter, Series: domain.TimeSeries(records)})
}

func (a *API) handleCentroid(w http.ResponseWriter, r *http.Request) {
	records, _, err := a.selection(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	c, err := domain.ComputeCentroid(records)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.EnrichCentroid(r.Context(), c, a.geocoder, a.logger))
}

func (a *API) handlePoints(w http.ResponseWriter, r *http.Request) {
	records, filter, err := a.selection(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pointsResponse{Filter: filter, Points: domain.Points(records)})
}

func (a *API) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if !a.decode(w, r, &req) {
		return
	}

	kind, err := domain.ParseIndicatorKind(req.Kind)
	if err != nil {
		a.writeError(w, err)
		return
	}

	var table domain.Table
	if req.Mode == "manual" {
		table, err = domain.NewManualTable(kind, req.Values)
	} else {
		table, err = domain.GenerateTable(kind, a.rng)
	}
	if err != nil {
		a.writeError(w, err)
		return
	}

	state, sol, err := domain.NewQuizState(table, req.Population)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if _, err := a.store.SetQuiz(r.PathValue("id"), state); err != nil {
		a.writeError(w, err)
		return
	}

	resp := quizResponse{Table: state.Table, Population: state.Population}
	for _, v := range sol.Variations {
		if v.Pending {
			resp.Pending = append(resp.Pending, v.Key())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCheckQuiz(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !a.decode(w, r, &req) {
		return
	}

	st, err := a.store.Get(r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	quiz, err := st.RequireQuiz()
	if err != nil {
		a.writeError(w, err)
		return
	}

	tolerance := a.tolerance
	if req.Tolerance != nil {
		tolerance = *req.Tolerance
	}
	grade, err := quiz.Check(domain.Answers{Rates: req.Rates, Variations: req.Variations}, tolerance)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.metrics.ObserveGrade(quiz.Table.Kind, grade)
	writeJSON(w, http.StatusOK, checkResponse{Grade: grade, AllMatch: grade.AllMatch()})
}

// dataset loads the dataset of the session named in the path.
func (a *API) dataset(r *http.Request) (domain.Dataset, error) {
	st, err := a.store.Get(r.PathValue("id"))
	if err != nil {
		return domain.Dataset{}, err
	}
	return st.RequireDataset()
}

// selection applies the repeated sector= and unit= query filters to the
// session dataset.
func (a *API) selection(r *http.Request) ([]domain.IncidentRecord, domain.Filter, error) {
	ds, err := a.dataset(r)
	if err != nil {
		return nil, domain.Filter{}, err
	}
	q := r.URL.Query()
	filter := domain.Filter{Sectors: q["sector"], RegistryUnits: q["unit"]}
	return filter.Apply(ds.Records), filter, nil
}

// decode reads a JSON body into dst and validates it, writing a 400 on failure.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
		return false
	}
	return true
}

func toSessionResponse(st session.State) sessionResponse {
	resp := sessionResponse{
		ID:         st.ID,
		Source:     st.Source,
		HasDataset: st.Dataset != nil,
		Quiz:       st.Quiz,
		CreatedAt:  st.CreatedAt,
		UpdatedAt:  st.UpdatedAt,
	}
	if st.Dataset != nil {
		stats := st.Dataset.Stats
		resp.Stats = &stats
	}
	return resp
}
