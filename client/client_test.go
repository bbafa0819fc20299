package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-dashboard/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestStartBatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/start_batch/pkg.mod", r.URL.Path)
		w.Write([]byte(`{"batch_id":"1000"}`)) //nolint:errcheck
	})

	start, err := c.StartBatch(context.Background(), "pkg.mod")
	require.NoError(t, err)
	assert.Equal(t, "1000", start.BatchID)
	assert.Nil(t, start.Info)
}

func TestStartBatchCombinedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		//nolint:errcheck
		w.Write([]byte(`{
			"batch_id": "7",
			"batch_info": {
				"num_units": 1,
				"test_unit_methods": {"pkg.a": ["pkg.a.m1"]},
				"load_errors": []
			},
			"results": [{"fullname": "pkg.a", "output": "ok"}]
		}`))
	})

	start, err := c.StartBatch(context.Background(), "pkg")
	require.NoError(t, err)
	require.NotNil(t, start.Info)
	assert.Equal(t, 1, start.Info.NumUnits)
	assert.Equal(t, []string{"pkg.a.m1"}, start.Info.UnitMethods["pkg.a"])
	require.Len(t, start.Results, 1)
	assert.Equal(t, "ok", start.Results[0].Output)
}

func TestBatchInfoNotReady(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/batch_info/1000", r.URL.Path)
		w.Write([]byte(`null`)) //nolint:errcheck
	})

	info, err := c.BatchInfo(context.Background(), "1000")
	require.NoError(t, err)
	assert.Nil(t, info, "a null body means the batch is not ready yet")
}

func TestBatchInfoReady(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		//nolint:errcheck
		w.Write([]byte(`{
			"num_units": 2,
			"test_unit_methods": {"a": ["a.m1"], "b": ["b.m1"]},
			"load_errors": [{"fullname": "c", "message": "import error"}]
		}`))
	})

	info, err := c.BatchInfo(context.Background(), "1000")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 2, info.NumUnits)
	assert.Equal(t, []types.NodeMessage{{Fullname: "c", Message: "import error"}}, info.LoadErrors)
}

func TestBatchResultsPassesOffset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/batch_results/1000", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("start"))
		w.Write([]byte(`[{"fullname": "a", "errors": [{"fullname": "a.m1", "message": "boom"}]}]`)) //nolint:errcheck
	})

	results, err := c.BatchResults(context.Background(), "1000", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Fullname)
	assert.Equal(t, "boom", results[0].Errors[0].Message)
}

func TestBatchResultsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`)) //nolint:errcheck
	})

	results, err := c.BatchResults(context.Background(), "1000", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetMethods(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_methods/pkg", r.URL.Path)
		w.Write([]byte(`{"method_names": ["pkg.a.m1", "pkg.a.m2"], "load_errors": []}`)) //nolint:errcheck
	})

	list, err := c.GetMethods(context.Background(), "pkg")
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg.a.m1", "pkg.a.m2"}, list.MethodNames)
}

func TestBackendErrorSurfaced(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such test object", http.StatusNotFound)
	})

	_, err := c.StartBatch(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "no such test object")
}
