// Package model loads and evaluates the toxicity classifier served by the
// prediction endpoint.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Labels are the sentiment types every prediction scores, in response order.
var Labels = []string{"toxic", "severe_toxic", "obscene", "threat", "insult", "identity_hate"}

var (
	ErrModelLoad = errors.New("model: load failed")
	ErrEmptyText = errors.New("model: text is empty")
)

type Score struct {
	Type  string  `json:"sentiment_type"`
	Score float64 `json:"sentiment_score"`
}

// Prediction holds one score per entry of Labels.
type Prediction []Score

type Predictor interface {
	Predict(ctx context.Context, text string) (Prediction, error)
}

// Lexicon is a bag-of-words logistic model: each label's score is
// sigmoid(bias + sum of the weights of the tokens in the text).
type Lexicon struct {
	Version string                        `yaml:"version"`
	Bias    map[string]float64            `yaml:"bias"`
	Weights map[string]map[string]float64 `yaml:"weights"`
}

// Load reads a lexicon model from a YAML file.
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrModelLoad, path, err)
	}
	if err := lex.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	return &lex, nil
}

func (l *Lexicon) validate() error {
	known := make(map[string]bool, len(Labels))
	for _, label := range Labels {
		known[label] = true
	}
	for label := range l.Bias {
		if !known[label] {
			return fmt.Errorf("unknown label %q in bias", label)
		}
	}
	for label := range l.Weights {
		if !known[label] {
			return fmt.Errorf("unknown label %q in weights", label)
		}
	}
	return nil
}

func (l *Lexicon) Predict(ctx context.Context, text string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	tokens := Tokenize(text)

	out := make(Prediction, 0, len(Labels))
	for _, label := range Labels {
		z := l.Bias[label]
		weights := l.Weights[label]
		for _, tok := range tokens {
			z += weights[tok]
		}
		out = append(out, Score{Type: label, Score: sigmoid(z)})
	}
	return out, nil
}

// Tokenize lowercases text and splits it into runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

var _ Predictor = (*Lexicon)(nil)
