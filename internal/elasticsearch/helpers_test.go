package elasticsearch_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	es "github.com/elastic/go-elasticsearch/v8"
)

// newTestES starts a fake cluster served by handler.
func newTestES(t *testing.T, handler http.HandlerFunc) *es.Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := es.NewClient(es.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}
