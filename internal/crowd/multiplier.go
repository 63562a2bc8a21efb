// Package crowd maintains the published crowd snapshot for the venue.
//
// Crowd counts come from a SignalSource; without a live feed the synthetic source
// derives them from a location's base crowd and the time-of-day multiplier table.
package crowd

import (
	"crowd-route-service/internal/domain"
	"fmt"
)

// HourRow holds one multiplier per hour of day, 0 through 23.
type HourRow [24]float64

// Table is the time-of-day multiplier table keyed by location class.
// Classes without a row use a flat multiplier of 1.0.
type Table map[domain.LocationClass]HourRow

// band fills hours [from, to] inclusive with v.
func (r *HourRow) band(from, to int, v float64) {
	for h := from; h <= to; h++ {
		r[h] = v
	}
}

func flat(v float64) HourRow {
	var r HourRow
	r.band(0, 23, v)
	return r
}

// DefaultTable returns the documented multipliers:
//
//	ghat       04-07 1.8  08-15 1.0  16-19 1.6  otherwise 0.4
//	temple     05-08 1.5  09-16 1.2  17-20 1.5  otherwise 0.8
//	transport  06-22 1.2  otherwise 0.6
//	food       07-09 1.4  12-14 1.4  19-21 1.4  otherwise 0.8
//	others     1.0
func DefaultTable() Table {
	ghat := flat(0.4)
	ghat.band(4, 7, 1.8)
	ghat.band(8, 15, 1.0)
	ghat.band(16, 19, 1.6)

	temple := flat(0.8)
	temple.band(5, 8, 1.5)
	temple.band(9, 16, 1.2)
	temple.band(17, 20, 1.5)

	transport := flat(0.6)
	transport.band(6, 22, 1.2)

	food := flat(0.8)
	food.band(7, 9, 1.4)
	food.band(12, 14, 1.4)
	food.band(19, 21, 1.4)

	return Table{
		domain.ClassGhat:      ghat,
		domain.ClassTemple:    temple,
		domain.ClassTransport: transport,
		domain.ClassFood:      food,
	}
}

var defaultTable = DefaultTable()

// Multiplier returns the default table value for class at hour.
func Multiplier(class domain.LocationClass, hour int) float64 {
	return defaultTable.Multiplier(class, hour)
}

// Multiplier returns the value for class at hour. Hours wrap modulo 24.
func (t Table) Multiplier(class domain.LocationClass, hour int) float64 {
	row, ok := t[class]
	if !ok {
		return 1.0
	}
	return row[((hour%24)+24)%24]
}

// Validate rejects negative or non-finite multipliers.
func (t Table) Validate() error {
	for class, row := range t {
		for h, v := range row {
			if !(v >= 0) || v > 100 {
				return fmt.Errorf("multiplier table: class %s hour %d: invalid multiplier %v", class, h, v)
			}
		}
	}
	return nil
}

// Merge returns a copy of t with the rows of override replacing t's rows.
func (t Table) Merge(override Table) Table {
	out := make(Table, len(t)+len(override))
	for c, r := range t {
		out[c] = r
	}
	for c, r := range override {
		out[c] = r
	}
	return out
}
