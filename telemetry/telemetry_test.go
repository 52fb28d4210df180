package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerAndTransport(t *testing.T) {
	var spans bytes.Buffer
	shutdown, err := Setup(context.Background(), Options{ServiceName: "storefront-test", Stdout: true, StdoutWriter: &spans})
	require.NoError(t, err)

	var traceparent string
	srv := httptest.NewServer(Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			traceparent = r.Header.Get("traceparent")
		}
		w.WriteHeader(http.StatusNoContent)
	}), "storefront-test"))
	defer srv.Close()

	client := &http.Client{Transport: Transport(nil)}
	for _, path := range []string{"/api/products", "/health"} {
		resp, err := client.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	require.NoError(t, shutdown(context.Background()))
	assert.NotEmpty(t, traceparent)
	out := spans.String()
	assert.Contains(t, out, "HTTP GET /api/products")
	assert.NotContains(t, out, "HTTP GET /health")
	assert.Contains(t, out, "storefront-test")
}

func TestSetupWithoutExporters(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{ServiceName: "quiet"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
