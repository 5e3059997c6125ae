// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package page

import (
	"time"
)

// Effect is a side effect requested by a committed mutation. The service
// never performs effects itself; the application layer executes them.
type Effect interface {
	effect()
}

// ScheduleAutopublish asks for the page's autopublish flag to be cleared at
// (or after) At.
type ScheduleAutopublish struct {
	PageID int64
	At     time.Time
}

// SweepCache asks the static cache to drop renderings affected by a page.
type SweepCache struct {
	PageID int64
}

// SweepAll asks the static cache to drop everything.
type SweepAll struct{}

func (ScheduleAutopublish) effect() {}
func (SweepCache) effect()          {}
func (SweepAll) effect()            {}

// Effects is the ordered list of effects of one operation.
type Effects []Effect

// HasSweep reports whether the list carries a cache sweep signal.
func (e Effects) HasSweep() bool {
	for _, eff := range e {
		switch eff.(type) {
		case SweepCache, SweepAll:
			return true
		}
	}
	return false
}

// saveEffects returns the effects of saving p: a sweep signal always, and an
// autopublish schedule while the page is waiting for its publication time.
func saveEffects(pageID int64, autopublish bool, publishedAt time.Time) Effects {
	effects := Effects{SweepCache{PageID: pageID}}
	if autopublish {
		effects = append(effects, ScheduleAutopublish{PageID: pageID, At: publishedAt})
	}
	return effects
}
