// Package tle reads, fetches and caches two-line element sets.
package tle

import "time"

// Entry is one satellite's two-line element set.
type Entry struct {
	NORADID int       `json:"norad_id"`
	Name    string    `json:"name"`
	Epoch   time.Time `json:"epoch"`
	Line1   string    `json:"line1"`
	Line2   string    `json:"line2"`
}

// EpochRange is the oldest and newest element epoch in a dataset.
type EpochRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Dataset is a complete set of element sets from one fetch.
type Dataset struct {
	Source     string     `json:"source"`
	FetchedAt  time.Time  `json:"fetched_at"`
	EpochRange EpochRange `json:"epoch_range"`
	Entries    []Entry    `json:"-"`
}

// NewDataset builds a Dataset and computes its epoch range.
func NewDataset(source string, fetchedAt time.Time, entries []Entry) *Dataset {
	ds := &Dataset{Source: source, FetchedAt: fetchedAt, Entries: entries}
	for i, e := range entries {
		if i == 0 || e.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = e.Epoch
		}
		if i == 0 || e.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = e.Epoch
		}
	}
	return ds
}
