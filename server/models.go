package main

import "time"

// PredictionRecord is one served prediction kept in the audit log. The
// request text itself is not stored, only its length.
type PredictionRecord struct {
	ID           uint      `gorm:"primaryKey"`
	RequestID    string    `gorm:"index"`
	Language     string
	EncodingType string
	TextChars    int
	Scores       string `gorm:"type:text"` // JSON array of model.Score
	ModelVersion string
	CreatedAt    time.Time `gorm:"index"`
}
