package model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeModel(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadBundledModel(t *testing.T) {
	lex, err := Load(filepath.Join("..", "..", "models", "lexicon.yaml"))
	require.NoError(t, err)

	pred, err := lex.Predict(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, pred, len(Labels))
	for i, score := range pred {
		require.Equal(t, Labels[i], score.Type)
		require.Greater(t, score.Score, 0.0)
		require.Less(t, score.Score, 0.5)
	}
}

func TestPredictWeightsTokens(t *testing.T) {
	lex, err := Load(writeModel(t, `
bias:
  insult: -2
weights:
  insult:
    idiot: 4
`))
	require.NoError(t, err)

	calm, err := lex.Predict(context.Background(), "have a nice day")
	require.NoError(t, err)
	rude, err := lex.Predict(context.Background(), "You IDIOT!")
	require.NoError(t, err)

	require.Equal(t, "insult", rude[4].Type)
	require.Greater(t, rude[4].Score, 0.8)
	require.Less(t, calm[4].Score, 0.2)
	require.InDelta(t, 0.5, rude[0].Score, 1e-9)
}

func TestPredictEmptyText(t *testing.T) {
	lex := &Lexicon{}
	_, err := lex.Predict(context.Background(), "  \t ")
	require.True(t, errors.Is(err, ErrEmptyText))
}

func TestPredictWithoutKnownTokensUsesBias(t *testing.T) {
	lex := &Lexicon{Bias: map[string]float64{"toxic": 0}}
	pred, err := lex.Predict(context.Background(), "?!")
	require.NoError(t, err)
	require.Len(t, pred, len(Labels))
	require.InDelta(t, 0.5, pred[0].Score, 1e-9)
}

func TestPredictHonoursCancelledContext(t *testing.T) {
	lex := &Lexicon{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := lex.Predict(ctx, "hello")
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, ErrModelLoad)

	_, err = Load(writeModel(t, "bias: [1, 2"))
	require.ErrorIs(t, err, ErrModelLoad)

	_, err = Load(writeModel(t, "bias:\n  sarcasm: 1\n"))
	require.ErrorIs(t, err, ErrModelLoad)
	require.Contains(t, err.Error(), "sarcasm")
}

func TestTokenize(t *testing.T) {
	require.Equal(t, []string{"hello", "world", "42"}, Tokenize("Hello, WORLD! 42"))
	require.Empty(t, Tokenize("?!"))
}
