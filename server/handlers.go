package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/upul/ml-dev-assignment/pkg/model"
)

const (
	seriesHealth  = "health"
	seriesPredict = "predict"
)

const (
	msgUndecodableBody   = "can not decode json from post body. probably you need to send Content-Type: application/json header"
	msgMissingRequestID  = "required parameter: request_id is missing"
	msgMissingText       = "required parameter: text is missing or empty"
	msgMissingLanguage   = "required parameter: language is missing or empty"
	msgMissingEncoding   = "required parameter: encoding_type is missing or empty"
	msgStatisticsUsage   = "URL incorrect, correct format: /api/v1/statistics?api=<api_name>"
	statisticsCountField = "number of calls in current minute"
)

type predictRequest struct {
	RequestID    json.RawMessage `json:"request_id"`
	Text         string          `json:"text"`
	Language     string          `json:"language"`
	EncodingType string          `json:"encoding_type"`
}

type predictResponse struct {
	RequestID json.RawMessage  `json:"request_id"`
	Sentiment model.Prediction `json:"sentiment"`
	Language  string           `json:"language"`
}

type seriesCount struct {
	API   string `json:"api"`
	Count int    `json:"count"`
}

func (s *Server) registerRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	v1.GET("/health", s.handleHealth)
	v1.POST("/predict", s.handlePredict)
	v1.GET("/statistics", s.handleStatistics)
	v1.GET("/statistics/series", s.handleListSeries)
	if s.store != nil {
		v1.GET("/predictions/:request_id", s.handleGetPrediction)
	}
	r.GET("/metrics", gin.WrapH(s.metrics))
}

// record counts one call to series and tags the request span with it.
func (s *Server) record(c *gin.Context, series string) {
	s.stats.Record(series)
	trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.String("sentiment.series", series))
}

func (s *Server) handleHealth(c *gin.Context) {
	s.record(c, seriesHealth)
	c.JSON(http.StatusOK, gin.H{"message": "Application is up and running"})
}

func (s *Server) handlePredict(c *gin.Context) {
	s.record(c, seriesPredict)

	if c.ContentType() != binding.MIMEJSON {
		respondError(c, http.StatusUnprocessableEntity, msgUndecodableBody, s.logger)
		return
	}
	// An empty object or a non-object body counts as undecodable. Fields
	// are checked for presence, so "request_id": null is accepted.
	var fields map[string]json.RawMessage
	if err := c.ShouldBindBodyWith(&fields, binding.JSON); err != nil || len(fields) == 0 {
		respondError(c, http.StatusUnprocessableEntity, msgUndecodableBody, s.logger)
		return
	}
	var req predictRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		respondError(c, http.StatusUnprocessableEntity, msgUndecodableBody, s.logger)
		return
	}
	if _, ok := fields["request_id"]; !ok {
		respondError(c, http.StatusUnprocessableEntity, msgMissingRequestID, s.logger)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		respondError(c, http.StatusUnprocessableEntity, msgMissingText, s.logger)
		return
	}
	if req.Language == "" {
		respondError(c, http.StatusUnprocessableEntity, msgMissingLanguage, s.logger)
		return
	}
	if req.EncodingType == "" {
		respondError(c, http.StatusUnprocessableEntity, msgMissingEncoding, s.logger)
		return
	}

	pred, err := s.model.Predict(c.Request.Context(), text)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "internal error has occurred. message: "+err.Error(), s.logger)
		return
	}

	if s.store != nil {
		id := requestIDKey(req.RequestID)
		if _, err := s.store.Save(c.Request.Context(), id, req.Language, req.EncodingType, utf8.RuneCountInString(text), s.modelVersion, pred); err != nil {
			logger := requestLogger(c, s.logger)
			logger.Error().Err(err).Str("prediction_id", id).Msg("failed to store prediction")
		}
	}

	c.JSON(http.StatusOK, predictResponse{
		RequestID: req.RequestID,
		Sentiment: pred,
		Language:  req.Language,
	})
}

func (s *Server) handleStatistics(c *gin.Context) {
	api, ok := c.GetQuery("api")
	if !ok {
		respondError(c, http.StatusUnprocessableEntity, msgStatisticsUsage, s.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"api":                api,
		statisticsCountField: s.stats.CountInWindow(api),
		"window_seconds":     int(s.stats.Window().Seconds()),
	})
}

func (s *Server) handleListSeries(c *gin.Context) {
	snapshot := s.stats.Snapshot()
	series := make([]seriesCount, 0, len(snapshot))
	for api, count := range snapshot {
		series = append(series, seriesCount{API: api, Count: count})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].API < series[j].API })

	c.JSON(http.StatusOK, gin.H{
		"window_seconds": int(s.stats.Window().Seconds()),
		"series":         series,
	})
}

func (s *Server) handleGetPrediction(c *gin.Context) {
	id := c.Param("request_id")
	record, err := s.store.Latest(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "prediction not found", s.logger)
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to load prediction", s.logger)
		return
	}
	pred, err := record.Prediction()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "stored prediction is corrupt", s.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id":    record.RequestID,
		"language":      record.Language,
		"encoding_type": record.EncodingType,
		"model_version": record.ModelVersion,
		"sentiment":     pred,
		"created_at":    record.CreatedAt,
	})
}

// requestIDKey renders a request_id as stored: JSON strings are unquoted,
// anything else is kept as its JSON text.
func requestIDKey(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	var str string
	if strings.HasPrefix(trimmed, `"`) && json.Unmarshal(raw, &str) == nil {
		return str
	}
	return trimmed
}
