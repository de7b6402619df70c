package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/smaite/weser/pkg/errors"
)

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestWriteSuccessWrapsPayload(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteSuccess(rec, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "ok", envelope.Data["status"])
}

func TestWriteErrorUsesCodeMetadata(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decodeErrorBody(t, rec)
	assert.Equal(t, string(pkgerrors.CodeNotFound), envelope.Error.Code)
	assert.Equal(t, "product not found", envelope.Error.Message)
	assert.Nil(t, envelope.Error.Details)
}

func TestWriteErrorIncludesDetailsWhenAllowed(t *testing.T) {
	rec := httptest.NewRecorder()

	err := pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
		WithDetails([]map[string]any{{"product_id": "abc", "available": 1}})
	WriteError(context.Background(), nil, rec, err)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	envelope := decodeErrorBody(t, rec)
	assert.Equal(t, string(pkgerrors.CodeStateConflict), envelope.Error.Code)
	assert.NotNil(t, envelope.Error.Details)
}

func TestWriteErrorMasksInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(context.Background(), nil, rec, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeErrorBody(t, rec)
	assert.Equal(t, string(pkgerrors.CodeInternal), envelope.Error.Code)
	assert.Equal(t, "internal server error", envelope.Error.Message)
	assert.NotContains(t, envelope.Error.Message, "connection refused")
}

func TestWriteErrorNilErrorFallsBack(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(context.Background(), nil, rec, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
