package cacheclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidflare/bidflare/config"
	"github.com/bidflare/bidflare/metrics"
	metricsConf "github.com/bidflare/bidflare/metrics/config"
)

func newTestClient(url string) Client {
	return NewClient(&config.Cache{URL: url}, &metricsConf.DummyMetricsEngine{})
}

var _ metrics.MetricsEngine = &metricsConf.DummyMetricsEngine{}

func TestPutJson(t *testing.T) {
	var requestBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestBody, _ = ioutil.ReadAll(r.Body)
		fmt.Fprint(w, `{"responses":[{"uuid":"uuid-1"},{"uuid":"uuid-2"}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	uuids, errs := client.PutJson(context.Background(), []Cacheable{
		{Type: TypeJSON, Data: json.RawMessage(`{"adm":"<div/>"}`), TTLSeconds: 300},
		{Type: TypeXML, Data: json.RawMessage(`"<VAST/>"`)},
	})

	assert.Empty(t, errs)
	require.Len(t, uuids, 2)
	assert.Equal(t, "uuid-1", uuids[0])
	assert.Equal(t, "uuid-2", uuids[1])

	assert.JSONEq(t,
		`{"puts":[{"type":"json","ttlseconds":300,"value":{"adm":"<div/>"}},{"type":"xml","value":"<VAST/>"}]}`,
		string(requestBody))
}

func TestPutJsonEmpty(t *testing.T) {
	client := newTestClient("http://never-called.example.com")
	uuids, errs := client.PutJson(context.Background(), nil)
	assert.Nil(t, uuids)
	assert.Empty(t, errs)
}

func TestPutJsonBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	uuids, errs := client.PutJson(context.Background(), []Cacheable{{Type: TypeJSON, Data: json.RawMessage(`{}`)}})
	require.Len(t, uuids, 1)
	assert.Equal(t, "", uuids[0], "failed puts still hold their slot")
	assert.NotEmpty(t, errs)
}

func TestPutJsonPartialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"responses":[{"uuid":"uuid-1"},{"nope":true}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	uuids, errs := client.PutJson(context.Background(), []Cacheable{
		{Type: TypeJSON, Data: json.RawMessage(`{}`)},
		{Type: TypeJSON, Data: json.RawMessage(`{}`)},
	})
	require.Len(t, uuids, 2)
	assert.Equal(t, "uuid-1", uuids[0])
	assert.Equal(t, "", uuids[1])
	assert.NotEmpty(t, errs)
}

func TestPutJsonContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"responses":[]}`)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(server.URL)
	uuids, errs := client.PutJson(ctx, []Cacheable{{Type: TypeJSON, Data: json.RawMessage(`{}`)}})
	require.Len(t, uuids, 1)
	assert.Equal(t, "", uuids[0])
	assert.NotEmpty(t, errs)
}
