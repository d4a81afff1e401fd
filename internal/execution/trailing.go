package execution

import (
	"signal-trader/internal/config"
	"signal-trader/internal/models"
)

// TrailingStop tracks the best price since entry and trails a stop behind
// it once the position has gained ActivationPercent.
type TrailingStop struct {
	Side              models.PositionSide
	EntryPrice        float64
	ActivationPercent float64
	TrailPercent      float64

	best   float64
	stop   float64
	active bool
}

// NewTrailingStop creates trailing state for a position opened at entry.
func NewTrailingStop(side models.PositionSide, entry float64, cfg config.RiskConfig) *TrailingStop {
	return &TrailingStop{
		Side:              side,
		EntryPrice:        entry,
		ActivationPercent: cfg.TrailingActivationPercent,
		TrailPercent:      cfg.TrailingTrailPercent,
		best:              entry,
	}
}

// Active reports whether the stop has armed.
func (t *TrailingStop) Active() bool {
	return t.active
}

// Stop returns the current trailing stop price, 0 while inactive.
func (t *TrailingStop) Stop() float64 {
	return t.stop
}

// Update feeds a new price. It returns the current stop and whether the
// price has crossed it. The stop only ever moves in the position's favour.
func (t *TrailingStop) Update(price float64) (float64, bool) {
	if t.TrailPercent <= 0 || price <= 0 {
		return t.stop, false
	}

	if t.Side == models.PositionLong {
		if price > t.best {
			t.best = price
		}
		if !t.active && t.best >= t.EntryPrice*(1+t.ActivationPercent/100) {
			t.active = true
		}
		if t.active {
			if s := t.best * (1 - t.TrailPercent/100); s > t.stop {
				t.stop = s
			}
			return t.stop, price <= t.stop
		}
		return t.stop, false
	}

	if price < t.best {
		t.best = price
	}
	if !t.active && t.best <= t.EntryPrice*(1-t.ActivationPercent/100) {
		t.active = true
	}
	if t.active {
		if s := t.best * (1 + t.TrailPercent/100); t.stop == 0 || s < t.stop {
			t.stop = s
		}
		return t.stop, price >= t.stop
	}
	return t.stop, false
}
