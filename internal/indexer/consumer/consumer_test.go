package consumer

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/kafka"
)

func TestHandleMessageIndexes(t *testing.T) {
	e := indexer.NewEngine(nil)
	h := HandleMessage(e)

	value, err := json.Marshal(ingestion.PageEvent{
		DocumentID: "https://a.example/pie",
		HeadTerms:  []string{"apple"},
		BodyTerms:  []string{"apple", "pie"},
		VisitID:    3,
	})
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), []byte("https://a.example/pie"), value))

	docs, ok := e.Body().Matches("pie")
	require.True(t, ok)
	assert.Equal(t, []string{"https://a.example/pie"}, docs.Sorted())
	assert.Equal(t, int64(1), e.Generation())
}

func TestHandleMessageSkipsBadEvents(t *testing.T) {
	e := indexer.NewEngine(nil)
	h := HandleMessage(e)

	for _, v := range []string{"not json", `{"head_terms":["apple"]}`, `{"document_id":"  \t"}`} {
		err := h(context.Background(), nil, []byte(v))
		assert.ErrorIs(t, err, kafka.ErrSkip, v)
	}
	assert.Equal(t, int64(0), e.Generation())
}

type rejectingBuilder struct{}

func (rejectingBuilder) BuildDocument(context.Context, indexer.Document) error {
	return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "document_id is required")
}

type failingBuilder struct{}

func (failingBuilder) BuildDocument(context.Context, indexer.Document) error {
	return context.DeadlineExceeded
}

func TestHandleMessageBuilderErrors(t *testing.T) {
	value := []byte(`{"document_id":"d1","body_terms":["pie"]}`)

	err := HandleMessage(rejectingBuilder{})(context.Background(), nil, value)
	assert.ErrorIs(t, err, kafka.ErrSkip, "invalid documents are never retried")

	err = HandleMessage(failingBuilder{})(context.Background(), nil, value)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, kafka.ErrSkip)
}
