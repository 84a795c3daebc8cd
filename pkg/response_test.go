package pkg

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type TestHttpResponseWriter struct {
	HeaderMap  http.Header
	Body       []byte
	StatusCode int
}

func (w *TestHttpResponseWriter) Header() http.Header {
	return w.HeaderMap
}

func (w *TestHttpResponseWriter) Write(bytes []byte) (int, error) {
	w.Body = bytes
	return len(bytes), nil
}

func (w *TestHttpResponseWriter) WriteHeader(statusCode int) {
	w.StatusCode = statusCode
}

func newTestWriter() *TestHttpResponseWriter {
	return &TestHttpResponseWriter{
		HeaderMap: make(http.Header),
	}
}

func TestWriteResponseBytes(t *testing.T) {
	w := newTestWriter()

	testJson := `{"key":"val"}`
	WriteResponseBytes(w, ContentType.JSON, []byte(testJson), http.StatusOK)

	assert.Equal(t, http.StatusOK, w.StatusCode)
	assert.Equal(t, ContentType.JSON, w.HeaderMap.Get("Content-Type"))
	assert.Equal(t, testJson, string(w.Body))
}

func TestWriteJSONResponse(t *testing.T) {
	w := newTestWriter()

	WriteJSONResponse(w, map[string]string{"message": "created"}, http.StatusCreated)

	assert.Equal(t, http.StatusCreated, w.StatusCode)
	assert.Equal(t, ContentType.JSON, w.HeaderMap.Get("Content-Type"))
	assert.JSONEq(t, `{"message":"created"}`, string(w.Body))
}

func TestWriteJSONResponse_Unmarshallable(t *testing.T) {
	w := newTestWriter()

	WriteJSONResponse(w, map[string]any{"ch": make(chan int)}, http.StatusOK)

	assert.Equal(t, http.StatusInternalServerError, w.StatusCode)
	assert.Equal(t, ContentType.Text, w.HeaderMap.Get("Content-Type"))
	assert.Equal(t, "internal server error", string(w.Body))
}

func TestWriteJSONError(t *testing.T) {
	w := newTestWriter()
	WriteJSONError(w, "invalid post", []string{"content"}, http.StatusBadRequest)
	assert.Equal(t, http.StatusBadRequest, w.StatusCode)
	assert.JSONEq(t, `{"error":"invalid post","fields":["content"]}`, string(w.Body))

	w = newTestWriter()
	WriteJSONError(w, "database unavailable", nil, http.StatusServiceUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, w.StatusCode)
	assert.JSONEq(t, `{"error":"database unavailable"}`, string(w.Body))
}
