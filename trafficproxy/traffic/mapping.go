package traffic

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Mapping holds the static service-link -> OSM way id translation loaded at
// startup from service_to_osm_mapping.csv.
type Mapping struct {
	serviceToWay map[string]string
}

// MappingStats reports how many CSV rows were usable.
type MappingStats struct {
	Loaded  int
	Skipped int
}

// LoadMapping reads the mapping CSV. Rows with a blank, "NaN" or otherwise
// non-numeric osm_way_id are skipped and counted, not fatal.
func LoadMapping(path string, log *slog.Logger) (*Mapping, MappingStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, MappingStats{}, fmt.Errorf("open mapping file: %w", err)
	}
	defer f.Close()

	m, stats, err := parseMapping(f)
	if err != nil {
		return nil, stats, err
	}
	log.Info("service-to-osm mapping loaded",
		"path", path,
		"loaded", stats.Loaded,
		"skipped", stats.Skipped,
	)
	return m, stats, nil
}

func parseMapping(r io.Reader) (*Mapping, MappingStats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, MappingStats{}, fmt.Errorf("read mapping header: %w", err)
	}
	serviceCol, wayCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "service_link_id":
			serviceCol = i
		case "osm_way_id":
			wayCol = i
		}
	}
	if serviceCol < 0 || wayCol < 0 {
		return nil, MappingStats{}, fmt.Errorf("mapping header missing service_link_id/osm_way_id: %v", header)
	}

	m := &Mapping{serviceToWay: make(map[string]string)}
	var stats MappingStats
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read mapping row: %w", err)
		}
		if serviceCol >= len(record) || wayCol >= len(record) {
			stats.Skipped++
			continue
		}
		serviceID := strings.TrimSpace(record[serviceCol])
		wayRaw := strings.TrimSpace(record[wayCol])
		if serviceID == "" || wayRaw == "" || strings.EqualFold(wayRaw, "nan") {
			stats.Skipped++
			continue
		}
		// Way ids may be serialized as floats ("123456.0").
		wayFloat, err := strconv.ParseFloat(wayRaw, 64)
		if err != nil {
			stats.Skipped++
			continue
		}
		m.serviceToWay[serviceID] = strconv.FormatInt(int64(wayFloat), 10)
		stats.Loaded++
	}
	return m, stats, nil
}

// WayID translates a municipal service-link id to an OSM way id.
func (m *Mapping) WayID(serviceLinkID string) (string, bool) {
	way, ok := m.serviceToWay[serviceLinkID]
	return way, ok
}

// ServiceLinkIDs returns all known service-link ids.
func (m *Mapping) ServiceLinkIDs() []string {
	ids := make([]string, 0, len(m.serviceToWay))
	for id := range m.serviceToWay {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of usable mapping entries.
func (m *Mapping) Len() int {
	return len(m.serviceToWay)
}
