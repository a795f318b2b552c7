package fmp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/company/profile/AAPL", r.URL.Path)
		assert.Equal(t, "key", r.URL.Query().Get("apikey"))
		io.WriteString(w, `{"symbol":"AAPL","profile":{"price":190.5,"companyName":"Apple Inc.","ceo":"Tim Cook","changesPercentage":"(+0.5%)"}}`)
	}))
	defer ts.Close()

	p, err := New(ts.URL, "key", 0).Profile(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", p.Profile.CompanyName)
	assert.Equal(t, 190.5, p.Profile.Price)
}

func TestProfileNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer ts.Close()

	_, err := New(ts.URL, "", 0).Profile(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := New(ts.URL, "bad", 0).Profile(context.Background(), "AAPL")
	assert.ErrorContains(t, err, "401")
}
