package jina

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Success(t *testing.T) {
	t.Parallel()

	want := SearchResponse{
		Code: 200,
		Data: []SearchResult{
			{Title: "Great Lakes Equipment", URL: "https://www.greatlakesequip.com/about"},
			{Title: "Yelp listing", URL: "https://www.yelp.com/biz/great-lakes"},
			{Title: "No URL"},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/Great Lakes Equipment Lansing MI", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("count"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithSearchBaseURL(srv.URL))
	got, err := client.Search(context.Background(), "Great Lakes Equipment Lansing MI", WithCount(5))

	require.NoError(t, err)
	require.Len(t, got.Data, 3)
	assert.Equal(t, []string{
		"https://www.greatlakesequip.com/about",
		"https://www.yelp.com/biz/great-lakes",
	}, got.URLs())
}

func TestSearch_CountryAndEmptyQuery(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "us", r.URL.Query().Get("gl"))
		assert.Empty(t, r.URL.Query().Get("count"))
		json.NewEncoder(w).Encode(SearchResponse{Code: 200})
	}))
	defer srv.Close()

	client := NewClient("k", WithSearchBaseURL(srv.URL+"/"))
	got, err := client.Search(context.Background(), "acme supply", WithCountry("US"), WithCount(0))
	require.NoError(t, err)
	assert.Empty(t, got.URLs())

	_, err = client.Search(context.Background(), "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty search query")
}

func TestSearch_NoResults422(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient("k", WithSearchBaseURL(srv.URL))
	got, err := client.Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Equal(t, 422, got.Code)
	assert.Empty(t, got.Data)
}

func TestSearch_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(SearchResponse{Code: 200, Data: []SearchResult{{URL: "https://acme.com"}}})
	}))
	defer srv.Close()

	client := NewClient("k", WithSearchBaseURL(srv.URL), WithRetries(3, time.Millisecond))
	got, err := client.Search(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"https://acme.com"}, got.URLs())
}

func TestSearch_RetriesExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient("k", WithSearchBaseURL(srv.URL), WithRetries(2, time.Millisecond))
	_, err := client.Search(context.Background(), "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearch_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`bad query`))
	}))
	defer srv.Close()

	client := NewClient("k", WithSearchBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestSearch_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient("k", WithSearchBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}
