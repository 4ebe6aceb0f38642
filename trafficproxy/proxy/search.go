package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/P-juuny/tsp-prob/pkg/seoul"
	"github.com/P-juuny/tsp-prob/trafficproxy/metrics"
)

// Geocoding confidence by source tier.
const (
	confidenceAddress  = 0.95
	confidenceKeyword  = 0.85
	confidenceDistrict = 0.5
	confidenceCity     = 0.1
)

type searchFeature struct {
	Type     string `json:"type"`
	Geometry struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
	} `json:"geometry"`
	Properties struct {
		Confidence  float64 `json:"confidence"`
		DisplayName string  `json:"display_name"`
		District    string  `json:"district,omitempty"`
		Source      string  `json:"source"`
	} `json:"properties"`
}

type searchResult struct {
	Features []searchFeature `json:"features"`
}

// handleSearch geocodes free-form text. It never fails: live geocoding
// degrades to the district centroid, and that degrades to the city centroid.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "text parameter is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if s.geocoder != nil {
		if place, ok, err := s.geocoder.SearchAddress(ctx, text); err == nil && ok {
			metrics.GeocodeResultsTotal.WithLabelValues("address").Inc()
			writeJSON(w, http.StatusOK, feature(place.Lat, place.Lon, place.Name, place.District, confidenceAddress, "address"))
			return
		} else if err != nil {
			metrics.UpstreamErrorsTotal.WithLabelValues("geocoder").Inc()
			s.log.Debug("proxy: address search failed", "error", err)
		}

		if place, ok, err := s.geocoder.SearchKeyword(ctx, text); err == nil && ok {
			metrics.GeocodeResultsTotal.WithLabelValues("keyword").Inc()
			writeJSON(w, http.StatusOK, feature(place.Lat, place.Lon, place.Name, place.District, confidenceKeyword, "keyword"))
			return
		} else if err != nil {
			metrics.UpstreamErrorsTotal.WithLabelValues("geocoder").Inc()
			s.log.Debug("proxy: keyword search failed", "error", err)
		}
	}

	coord, district := seoul.DistrictCoordinates(text)
	if district != "" {
		metrics.GeocodeResultsTotal.WithLabelValues("district").Inc()
		writeJSON(w, http.StatusOK, feature(coord.Lat, coord.Lon, district, district, confidenceDistrict, "district_centroid"))
		return
	}

	metrics.GeocodeResultsTotal.WithLabelValues("city").Inc()
	writeJSON(w, http.StatusOK, feature(coord.Lat, coord.Lon, "서울", "", confidenceCity, "city_centroid"))
}

func feature(lat, lon float64, name, district string, confidence float64, source string) searchResult {
	var f searchFeature
	f.Type = "Feature"
	f.Geometry.Type = "Point"
	f.Geometry.Coordinates = [2]float64{lon, lat}
	f.Properties.Confidence = confidence
	f.Properties.DisplayName = name
	f.Properties.District = district
	f.Properties.Source = source
	return searchResult{Features: []searchFeature{f}}
}
