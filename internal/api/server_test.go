package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iop-forecast-server/internal/cache"
	"github.com/iop-forecast-server/internal/domain"
	"github.com/iop-forecast-server/internal/history"
	"github.com/iop-forecast-server/internal/service"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel) // Reduce noise in tests

	store, err := history.NewSQLiteStore(filepath.Join(t.TempDir(), "forecasts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fc, err := cache.New(domain.CacheConfig{Enabled: true, LRUSize: 16, DefaultTTL: time.Minute}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { fc.Close() })

	scorer := service.NewRiskScorer(logger)
	engine := service.NewForecastEngine(scorer, logger)

	return NewServer(Deps{
		Config: &domain.ServerConfig{
			Host:           "127.0.0.1",
			Port:           0,
			RequestTimeout: 5 * time.Second,
			RateLimitRPS:   1000,
			RateLimitBurst: 1000,
		},
		Logger:  logger,
		Scorer:  scorer,
		Engine:  engine,
		History: store,
		Cache:   fc,
	})
}

// referenceBody matches the attrs whose score is 23.0 / moderate / 15.9.
func referenceBody() string {
	return `{
		"age": 50,
		"gender": "male",
		"sleep_quality": 7,
		"stress_level": 4,
		"physical_activity": 5,
		"diabetes_status": "none",
		"systolic_bp": 120,
		"diastolic_bp": 80,
		"family_history": "none",
		"current_medications": "none",
		"last_drop_hours": 24,
		"patient_label": "ref-patient"
	}`
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestForecastEndpoint(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/forecast", referenceBody())
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Forecast-ID"))

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body, 4)
	for _, key := range []string{"predictions", "optimal_drop_time", "circadian_analysis", "risk_assessment"} {
		assert.Contains(t, body, key)
	}

	var predictions []domain.HourlyPrediction
	require.NoError(t, json.Unmarshal(body["predictions"], &predictions))
	require.Len(t, predictions, 24)
	for i, p := range predictions {
		assert.Equal(t, i, p.Hour)
	}

	var dropTime string
	require.NoError(t, json.Unmarshal(body["optimal_drop_time"], &dropTime))
	assert.Equal(t, "18:00", dropTime)

	var assessment domain.ForecastRiskAssessment
	require.NoError(t, json.Unmarshal(body["risk_assessment"], &assessment))
	assert.Equal(t, 23.0, assessment.RiskPercentage)
	assert.Equal(t, domain.RiskModerate, assessment.Level)
}

func TestForecastCacheHit(t *testing.T) {
	s := testServer(t)

	first := doRequest(s, http.MethodPost, "/api/v1/forecast", referenceBody())
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get("X-Cache"))

	second := doRequest(s, http.MethodPost, "/api/v1/forecast", referenceBody())
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "hit", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestForecastValidationError(t *testing.T) {
	s := testServer(t)

	body := strings.Replace(referenceBody(), `"age": 50`, `"age": 12`, 1)
	w := doRequest(s, http.MethodPost, "/api/v1/forecast", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "age", resp["field"])
}

func TestForecastMalformedJSON(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/forecast", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRiskEndpoint(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/risk", referenceBody())
	require.Equal(t, http.StatusOK, w.Code)

	var assessment domain.RiskAssessment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &assessment))
	assert.Equal(t, 23.0, assessment.RiskPercentage)
	assert.Equal(t, domain.RiskModerate, assessment.RiskLevel)
	assert.Equal(t, 15.9, assessment.AveragePredictedIOP)
	assert.NotEmpty(t, assessment.Message)
}

func TestForecastHistoryRoundtrip(t *testing.T) {
	s := testServer(t)

	created := doRequest(s, http.MethodPost, "/api/v1/forecast", referenceBody())
	require.Equal(t, http.StatusOK, created.Code)
	id := created.Header().Get("X-Forecast-ID")
	require.NotEmpty(t, id)

	w := doRequest(s, http.MethodGet, "/api/v1/forecasts/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)

	var record domain.ForecastRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, id, record.ID)
	assert.Equal(t, "ref-patient", record.PatientLabel)
	assert.Len(t, record.Response.Predictions, 24)
}

func TestGetForecastNotFound(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/forecasts/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListForecasts(t *testing.T) {
	s := testServer(t)

	for i := 0; i < 3; i++ {
		body := strings.Replace(referenceBody(), `"stress_level": 4`, fmt.Sprintf(`"stress_level": %d`, 4+i), 1)
		w := doRequest(s, http.MethodPost, "/api/v1/forecast", body)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doRequest(s, http.MethodGet, "/api/v1/forecasts?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Forecasts []*domain.ForecastRecord `json:"forecasts"`
		Count     int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Forecasts, 2)
}

func TestListForecastsBadLimit(t *testing.T) {
	s := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/forecasts?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportForecasts(t *testing.T) {
	s := testServer(t)

	created := doRequest(s, http.MethodPost, "/api/v1/forecast", referenceBody())
	require.Equal(t, http.StatusOK, created.Code)

	w := doRequest(s, http.MethodGet, "/api/v1/forecasts/export", "")
	require.Equal(t, http.StatusOK, w.Code)

	var records []*domain.ForecastRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Len(t, records, 1)
}

func TestRiskLiveWebsocket(t *testing.T) {
	s := testServer(t)

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/risk/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(referenceBody())))

	var reply struct {
		Assessment *domain.RiskAssessment `json:"assessment"`
		Error      string                 `json:"error"`
		Field      string                 `json:"field"`
	}
	require.NoError(t, conn.ReadJSON(&reply))
	require.NotNil(t, reply.Assessment)
	assert.Equal(t, 23.0, reply.Assessment.RiskPercentage)
	assert.Empty(t, reply.Error)

	// Invalid snapshot keeps the socket open and reports the field.
	bad := strings.Replace(referenceBody(), `"age": 50`, `"age": 12`, 1)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(bad)))
	reply.Assessment = nil
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Nil(t, reply.Assessment)
	assert.Equal(t, "age", reply.Field)
}
