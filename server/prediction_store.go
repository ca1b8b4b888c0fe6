package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/upul/ml-dev-assignment/pkg/model"
)

// PredictionStore persists served predictions for later lookup by request ID.
type PredictionStore struct {
	db *gorm.DB
}

func OpenPredictionStore(path string) (*PredictionStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open prediction store: %w", err)
	}
	return NewPredictionStore(db)
}

func NewPredictionStore(db *gorm.DB) (*PredictionStore, error) {
	if err := db.AutoMigrate(&PredictionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate prediction store: %w", err)
	}
	return &PredictionStore{db: db}, nil
}

func (s *PredictionStore) Save(ctx context.Context, requestID, language, encoding string, textChars int, modelVersion string, pred model.Prediction) (*PredictionRecord, error) {
	scores, err := json.Marshal(pred)
	if err != nil {
		return nil, err
	}
	record := PredictionRecord{
		RequestID:    requestID,
		Language:     language,
		EncodingType: encoding,
		TextChars:    textChars,
		Scores:       string(scores),
		ModelVersion: modelVersion,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Latest returns the most recent prediction stored for requestID, or
// gorm.ErrRecordNotFound.
func (s *PredictionStore) Latest(ctx context.Context, requestID string) (*PredictionRecord, error) {
	var record PredictionRecord
	err := s.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at desc, id desc").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *PredictionRecord) Prediction() (model.Prediction, error) {
	var pred model.Prediction
	if err := json.Unmarshal([]byte(r.Scores), &pred); err != nil {
		return nil, err
	}
	return pred, nil
}
