package seoul_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P-juuny/tsp-prob/pkg/seoul"
)

func TestEveryDistrictHasExactlyOneZone(t *testing.T) {
	districts := seoul.Districts()
	require.Len(t, districts, 25)

	seen := make(map[string]string)
	for _, zone := range seoul.Zones() {
		for _, d := range seoul.ZoneDistricts(zone) {
			prev, dup := seen[d]
			assert.False(t, dup, "district %s in both %s and %s", d, prev, zone)
			seen[d] = zone
			assert.True(t, seoul.IsDistrict(d))
		}
	}
	assert.Len(t, seen, 25)

	for _, d := range districts {
		_, ok := seoul.ZoneForDistrict(d)
		assert.True(t, ok, "district %s has no zone", d)
		_, ok = seoul.Centroid(d)
		assert.True(t, ok, "district %s has no centroid", d)
	}
}

func TestZoneForDistrict(t *testing.T) {
	cases := map[string]string{
		"마포구": seoul.ZoneNorthWest,
		"노원구": seoul.ZoneNorthEast,
		"용산구": seoul.ZoneNorthCentral,
		"관악구": seoul.ZoneSouthWest,
		"강남구": seoul.ZoneSouthEast,
	}
	for district, want := range cases {
		zone, ok := seoul.ZoneForDistrict(district)
		require.True(t, ok, district)
		assert.Equal(t, want, zone)
	}

	_, ok := seoul.ZoneForDistrict("해운대구")
	assert.False(t, ok)
}

func TestExtractDistrict(t *testing.T) {
	assert.Equal(t, "강남구", seoul.ExtractDistrict("서울특별시 강남구 테헤란로 123"))
	assert.Equal(t, "마포구", seoul.ExtractDistrict("서울시마포구월드컵북로 400"))
	assert.Equal(t, "", seoul.ExtractDistrict("경기도 성남시 분당구 판교로"))
	assert.Equal(t, "", seoul.ExtractDistrict(""))
}

func TestDistrictCoordinates(t *testing.T) {
	coord, district := seoul.DistrictCoordinates("서울 강남구 역삼동")
	assert.Equal(t, "강남구", district)
	assert.Equal(t, 37.5172, coord.Lat)
	assert.Equal(t, 127.0473, coord.Lon)

	coord, district = seoul.DistrictCoordinates("주소 불명")
	assert.Equal(t, "", district)
	assert.Equal(t, seoul.CityCenter, coord)
}
