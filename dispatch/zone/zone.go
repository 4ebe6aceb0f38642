// Package zone maps districts to operational zones and zones to the fixed
// driver identities: pickup drivers 1 through 5, delivery drivers 6 through
// 10. The tables are static configuration.
package zone

import "github.com/P-juuny/tsp-prob/pkg/seoul"

var pickupDrivers = map[string]int{
	seoul.ZoneNorthWest:    1,
	seoul.ZoneNorthEast:    2,
	seoul.ZoneNorthCentral: 3,
	seoul.ZoneSouthWest:    4,
	seoul.ZoneSouthEast:    5,
}

const deliveryOffset = 5

// ForDistrict resolves a district name like "강남구" to its zone.
func ForDistrict(district string) (string, bool) {
	return seoul.ZoneForDistrict(district)
}

// PickupDriver returns the pickup driver (1..5) covering the district.
func PickupDriver(district string) (int, string, bool) {
	z, ok := seoul.ZoneForDistrict(district)
	if !ok {
		return 0, "", false
	}
	return pickupDrivers[z], z, true
}

// DeliveryDriver returns the delivery driver (6..10) covering the district.
func DeliveryDriver(district string) (int, string, bool) {
	z, ok := seoul.ZoneForDistrict(district)
	if !ok {
		return 0, "", false
	}
	return pickupDrivers[z] + deliveryOffset, z, true
}

// PickupDriverForZone returns the pickup driver bound to the zone.
func PickupDriverForZone(z string) (int, bool) {
	d, ok := pickupDrivers[z]
	return d, ok
}

// DeliveryDriverForZone returns the delivery driver bound to the zone.
func DeliveryDriverForZone(z string) (int, bool) {
	d, ok := pickupDrivers[z]
	if !ok {
		return 0, false
	}
	return d + deliveryOffset, true
}
