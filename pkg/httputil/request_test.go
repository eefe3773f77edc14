package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestParseJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"test"}`))

	var dest struct {
		Name string `json:"name"`
	}
	err := ParseJSON(r, &dest)

	assert.NoError(t, err)
	assert.Equal(t, "test", dest.Name)
}

func TestParseJSONInvalid(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{invalid`))

	var dest map[string]interface{}
	err := ParseJSON(r, &dest)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestParseJSONOrError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{bad`))

	var dest map[string]interface{}
	ok := ParseJSONOrError(w, r, &dest)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePathString(t *testing.T) {
	r := httptest.NewRequest("GET", "/users/user-1", nil)
	r = mux.SetURLVars(r, map[string]string{"id": "user-1"})

	val, err := ParsePathString(r, "id")

	assert.NoError(t, err)
	assert.Equal(t, "user-1", val)
}

func TestParsePathStringMissing(t *testing.T) {
	r := httptest.NewRequest("GET", "/users/", nil)

	_, err := ParsePathString(r, "id")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing path parameter")
}

func TestParseQueryInt(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		defaultValue int
		want         int
	}{
		{name: "parses value", url: "/?limit=25", defaultValue: 10, want: 25},
		{name: "missing uses default", url: "/", defaultValue: 10, want: 10},
		{name: "invalid uses default", url: "/?limit=abc", defaultValue: 10, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			assert.Equal(t, tt.want, ParseQueryInt(r, "limit", tt.defaultValue))
		})
	}
}

func TestParseQueryFloat(t *testing.T) {
	r := httptest.NewRequest("GET", "/?threshold=2.5", nil)
	assert.Equal(t, 2.5, ParseQueryFloat(r, "threshold", 3))

	r = httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, 3.0, ParseQueryFloat(r, "threshold", 3))
}

func TestParseQueryTime(t *testing.T) {
	r := httptest.NewRequest("GET", "/?start=2026-03-01T00:00:00Z", nil)

	got, err := ParseQueryTime(r, "start")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got.UTC())
}

func TestParseQueryTimeMissing(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)

	got, err := ParseQueryTime(r, "start")
	assert.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestParseQueryTimeInvalid(t *testing.T) {
	r := httptest.NewRequest("GET", "/?start=yesterday", nil)

	_, err := ParseQueryTime(r, "start")
	assert.Error(t, err)
}
