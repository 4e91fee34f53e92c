package report

import (
	"sort"

	"k3rs/backend/internal/inspection"
)

// TypeGroup is every record sharing one inspection type, in input order.
type TypeGroup struct {
	Type    string
	Records []inspection.Record
}

// DateGroup is every record of one type sharing one formatted date.
type DateGroup struct {
	Date    string
	Records []inspection.Record
}

// TypeDateGroup nests DateGroups under one inspection type.
type TypeDateGroup struct {
	Type  string
	Dates []DateGroup
}

// GroupByType partitions records by type. Keys keep first-seen order and
// records keep their input order within a group.
func GroupByType(records []inspection.Record) []TypeGroup {
	index := make(map[string]int)
	groups := make([]TypeGroup, 0)
	for _, rec := range records {
		i, ok := index[rec.Type]
		if !ok {
			i = len(groups)
			index[rec.Type] = i
			groups = append(groups, TypeGroup{Type: rec.Type})
		}
		groups[i].Records = append(groups[i].Records, rec)
	}
	return groups
}

// GroupByTypeThenDate partitions records by type and then by formatted date,
// both levels in first-seen order.
func GroupByTypeThenDate(records []inspection.Record) []TypeDateGroup {
	byType := GroupByType(records)
	out := make([]TypeDateGroup, 0, len(byType))
	for _, tg := range byType {
		index := make(map[string]int)
		dates := make([]DateGroup, 0)
		for _, rec := range tg.Records {
			key := FormatLocalizedDate(rec.Date.Time)
			i, ok := index[key]
			if !ok {
				i = len(dates)
				index[key] = i
				dates = append(dates, DateGroup{Date: key})
			}
			dates[i].Records = append(dates[i].Records, rec)
		}
		out = append(out, TypeDateGroup{Type: tg.Type, Dates: dates})
	}
	return out
}

// SortByDate returns a copy of records ordered by inspection date ascending.
// Equal dates keep their input order; the input slice is not touched.
func SortByDate(records []inspection.Record) []inspection.Record {
	out := make([]inspection.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out
}
