package crowd

import (
	"crowd-route-service/internal/domain"
	"time"
)

// TablePredictor predicts the next peak as the start of the next hour whose
// multiplier rises above 1.0 from a value at or below it.
type TablePredictor struct {
	Table Table
}

func NewTablePredictor(t Table) *TablePredictor {
	if t == nil {
		t = DefaultTable()
	}
	return &TablePredictor{Table: t}
}

// NextPeak looks at most 24 hours ahead of now. Classes without a rising band
// report false.
func (p *TablePredictor) NextPeak(loc domain.Location, now time.Time) (time.Time, bool) {
	top := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())

	for step := 1; step <= 24; step++ {
		at := top.Add(time.Duration(step) * time.Hour)
		h := at.Hour()
		cur := p.Table.Multiplier(loc.Class, h)
		prev := p.Table.Multiplier(loc.Class, h-1)
		if cur > 1.0 && prev <= 1.0 {
			return at, true
		}
	}
	return time.Time{}, false
}
