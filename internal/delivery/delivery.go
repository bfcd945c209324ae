// Package delivery estimates when an order will reach its shipping address.
package delivery

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"storefront/internal/model"

	"gopkg.in/yaml.v3"
)

//go:embed zones.yaml
var defaultZones []byte

const dateLayout = "2006-01-02"

// Estimator computes an estimated delivery date for a destination.
type Estimator interface {
	Estimate(from time.Time, addr model.Address) time.Time
}

// Zone groups destinations that share a delivery lead time.
type Zone struct {
	Name           string   `yaml:"name"`
	Days           int      `yaml:"days"`
	PostalPrefixes []string `yaml:"postal_prefixes"`
	States         []string `yaml:"states"`
}

// Table is the on-disk zone configuration.
type Table struct {
	DefaultDays int      `yaml:"default_days"`
	Zones       []Zone   `yaml:"zones"`
	Holidays    []string `yaml:"holidays"`
}

// ZoneEstimator estimates delivery dates from a zone table.
type ZoneEstimator struct {
	table    Table
	holidays map[string]struct{}
}

// Load reads a zone table from path. An empty path selects the built-in table.
func Load(path string) (*ZoneEstimator, error) {
	if path == "" {
		return Parse(defaultZones)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read delivery zones %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds an estimator from YAML.
func Parse(data []byte) (*ZoneEstimator, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse delivery zones: %w", err)
	}

	if table.DefaultDays <= 0 {
		return nil, fmt.Errorf("default_days must be positive")
	}
	for _, zone := range table.Zones {
		if zone.Days <= 0 {
			return nil, fmt.Errorf("zone %q: days must be positive", zone.Name)
		}
	}

	holidays := make(map[string]struct{}, len(table.Holidays))
	for _, h := range table.Holidays {
		day, err := time.Parse(dateLayout, strings.TrimSpace(h))
		if err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		holidays[day.Format(dateLayout)] = struct{}{}
	}

	return &ZoneEstimator{table: table, holidays: holidays}, nil
}

// LeadDays returns the number of business days needed to reach addr.
// A postal-prefix match beats a state match; the longest prefix wins.
func (e *ZoneEstimator) LeadDays(addr model.Address) int {
	postal := strings.ReplaceAll(strings.TrimSpace(addr.PostalCode), " ", "")

	best, bestLen := 0, 0
	for _, zone := range e.table.Zones {
		for _, prefix := range zone.PostalPrefixes {
			if postal != "" && strings.HasPrefix(postal, prefix) && len(prefix) > bestLen {
				best, bestLen = zone.Days, len(prefix)
			}
		}
	}
	if bestLen > 0 {
		return best
	}

	state := strings.TrimSpace(addr.State)
	for _, zone := range e.table.Zones {
		for _, s := range zone.States {
			if strings.EqualFold(s, state) {
				return zone.Days
			}
		}
	}

	return e.table.DefaultDays
}

// Estimate counts LeadDays business days forward from the calendar day of from,
// skipping Sundays and holidays. The result is midnight in from's location.
func (e *ZoneEstimator) Estimate(from time.Time, addr model.Address) time.Time {
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())

	remaining := e.LeadDays(addr)
	for remaining > 0 {
		day = day.AddDate(0, 0, 1)
		if e.businessDay(day) {
			remaining--
		}
	}

	return day
}

func (e *ZoneEstimator) businessDay(day time.Time) bool {
	if day.Weekday() == time.Sunday {
		return false
	}
	_, holiday := e.holidays[day.Format(dateLayout)]
	return !holiday
}
