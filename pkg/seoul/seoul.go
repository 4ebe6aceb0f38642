// Package seoul holds the static geography of the service area: the 25
// administrative districts, their centroids, and the grouping of districts
// into the five operational zones.
package seoul

import "strings"

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CityCenter is the metropolitan fallback when nothing better is known.
var CityCenter = Coordinate{Lat: 37.5665, Lon: 126.9780}

// Zone names. Each zone covers a fixed set of districts.
const (
	ZoneNorthWest    = "강북서부"
	ZoneNorthEast    = "강북동부"
	ZoneNorthCentral = "강북중부"
	ZoneSouthWest    = "강남서부"
	ZoneSouthEast    = "강남동부"
)

// zoneDistricts maps each zone to its districts. Every district appears in
// exactly one zone.
var zoneDistricts = map[string][]string{
	ZoneNorthWest:    {"은평구", "서대문구", "마포구"},
	ZoneNorthEast:    {"도봉구", "노원구", "강북구", "성북구"},
	ZoneNorthCentral: {"종로구", "중구", "용산구"},
	ZoneSouthWest:    {"강서구", "양천구", "구로구", "영등포구", "동작구", "관악구", "금천구"},
	ZoneSouthEast:    {"성동구", "광진구", "동대문구", "중랑구", "강동구", "송파구", "강남구", "서초구"},
}

// districtZone is the inverse of zoneDistricts, built at init.
var districtZone = func() map[string]string {
	m := make(map[string]string)
	for zone, districts := range zoneDistricts {
		for _, d := range districts {
			m[d] = zone
		}
	}
	return m
}()

// centroids are the per-district fallback coordinates used when live
// geocoding is unavailable.
var centroids = map[string]Coordinate{
	"강남구":  {37.5172, 127.0473},
	"서초구":  {37.4837, 127.0324},
	"송파구":  {37.5145, 127.1059},
	"강동구":  {37.5301, 127.1238},
	"성동구":  {37.5634, 127.0369},
	"광진구":  {37.5384, 127.0822},
	"동대문구": {37.5744, 127.0396},
	"중랑구":  {37.6063, 127.0927},
	"종로구":  {37.5735, 126.9790},
	"중구":   {37.5641, 126.9979},
	"용산구":  {37.5311, 126.9810},
	"성북구":  {37.5894, 127.0167},
	"강북구":  {37.6396, 127.0253},
	"도봉구":  {37.6687, 127.0472},
	"노원구":  {37.6543, 127.0568},
	"은평구":  {37.6176, 126.9269},
	"서대문구": {37.5791, 126.9368},
	"마포구":  {37.5638, 126.9084},
	"양천구":  {37.5170, 126.8667},
	"강서구":  {37.5509, 126.8496},
	"구로구":  {37.4954, 126.8877},
	"금천구":  {37.4564, 126.8955},
	"영등포구": {37.5263, 126.8966},
	"동작구":  {37.5124, 126.9393},
	"관악구":  {37.4784, 126.9516},
}

// Districts returns all 25 district names.
func Districts() []string {
	ds := make([]string, 0, len(centroids))
	for d := range centroids {
		ds = append(ds, d)
	}
	return ds
}

// IsDistrict reports whether name is a known district.
func IsDistrict(name string) bool {
	_, ok := centroids[name]
	return ok
}

// Centroid returns the fallback coordinate for a district.
func Centroid(district string) (Coordinate, bool) {
	c, ok := centroids[district]
	return c, ok
}

// ZoneForDistrict returns the operational zone covering a district.
func ZoneForDistrict(district string) (string, bool) {
	z, ok := districtZone[district]
	return z, ok
}

// ZoneDistricts returns the districts covered by a zone.
func ZoneDistricts(zone string) []string {
	return zoneDistricts[zone]
}

// Zones returns the five zone names.
func Zones() []string {
	return []string{ZoneNorthWest, ZoneNorthEast, ZoneNorthCentral, ZoneSouthWest, ZoneSouthEast}
}

// ExtractDistrict pulls the district token out of a free-form address by
// looking for the "…구" suffix. Returns "" when no known district is found.
func ExtractDistrict(address string) string {
	for _, part := range strings.Fields(address) {
		if strings.HasSuffix(part, "구") && IsDistrict(part) {
			return part
		}
	}
	// Some addresses omit spaces around the district token.
	for d := range centroids {
		if strings.Contains(address, d) {
			return d
		}
	}
	return ""
}

// DistrictCoordinates resolves an address to a fallback coordinate: the
// containing district's centroid when one can be extracted, the city center
// otherwise.
func DistrictCoordinates(address string) (Coordinate, string) {
	if d := ExtractDistrict(address); d != "" {
		c := centroids[d]
		return c, d
	}
	return CityCenter, ""
}
