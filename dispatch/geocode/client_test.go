package geocode_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P-juuny/tsp-prob/dispatch/geocode"
)

func TestLocate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "서울 강남구 테헤란로 1", r.URL.Query().Get("text"))
		fmt.Fprint(w, `{"features":[{"geometry":{"coordinates":[127.0276,37.4979]},"properties":{"confidence":0.95,"display_name":"강남역","district":"강남구"}}]}`)
	}))
	defer server.Close()

	result, err := geocode.New(server.URL).Locate(context.Background(), "서울 강남구 테헤란로 1")
	require.NoError(t, err)

	assert.Equal(t, 37.4979, result.Lat)
	assert.Equal(t, 127.0276, result.Lon)
	assert.Equal(t, "강남역", result.DisplayName)
	assert.Equal(t, "강남구", result.District)
	assert.Equal(t, 0.95, result.Confidence)
}

func TestLocate_DistrictFallsBackToAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"features":[{"geometry":{"coordinates":[126.9084,37.5638]},"properties":{"confidence":0.85,"display_name":"어딘가"}}]}`)
	}))
	defer server.Close()

	result, err := geocode.New(server.URL).Locate(context.Background(), "서울 마포구 월드컵북로 400")
	require.NoError(t, err)
	assert.Equal(t, "마포구", result.District)
}

func TestLocate_NoFeatures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"features":[]}`)
	}))
	defer server.Close()

	_, err := geocode.New(server.URL).Locate(context.Background(), "주소")
	assert.Error(t, err)
}

func TestFallback(t *testing.T) {
	result := geocode.Fallback("서울 강남구 역삼동 1-1")
	assert.Equal(t, "강남구", result.District)
	assert.Equal(t, 0.5, result.Confidence)
	assert.Equal(t, 37.5172, result.Lat)

	result = geocode.Fallback("어딘지 모름")
	assert.Equal(t, "", result.District)
	assert.Equal(t, 0.1, result.Confidence)
	assert.Equal(t, 37.5665, result.Lat)
}
