package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchPostsRequiresQuery(t *testing.T) {
	env := newTestEnv(t)
	h := &SearchHandler{}

	_, c := env.doJSONRequest(http.MethodGet, "/api/v1/search", nil)
	requireHTTPError(t, h.SearchPosts(c), http.StatusBadRequest)
}

func TestSearchPostsWithoutBackend(t *testing.T) {
	env := newTestEnv(t)
	h := &SearchHandler{}

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/search?q=arboles", nil)
	require.NoError(t, h.SearchPosts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Zero(t, resp.Total)
}
