package domain

import "sort"

// Validate checks a fetched record set and returns it in the canonical
// order formatters depend on: timestamp ascending, ties broken by station
// then variable. The input slice is never mutated.
//
// Failures are defects to surface, not conditions to repair: duplicate
// (station, variable, timestamp) tuples and variables outside expected are
// rejected with *ValidationError, and an empty set with *EmptyResultError
// (a range with only missing readings still yields missing-marker records,
// so emptiness always means something went wrong upstream).
func Validate(records []Record, expected []Variable) ([]Record, error) {
	if len(records) == 0 {
		return nil, &EmptyResultError{}
	}

	allowed := make(map[Variable]bool, len(expected))
	for _, v := range expected {
		allowed[v] = true
	}

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if !allowed[r.Variable] {
			return nil, &ValidationError{
				Reason:    ReasonOutOfCapability,
				Station:   r.Station,
				Variable:  r.Variable,
				Timestamp: r.Timestamp,
			}
		}
		key := r.Key()
		if seen[key] {
			return nil, &ValidationError{
				Reason:    ReasonDuplicateRecord,
				Station:   r.Station,
				Variable:  r.Variable,
				Timestamp: r.Timestamp,
			}
		}
		seen[key] = true
	}

	ordered := make([]Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Station != b.Station {
			return a.Station < b.Station
		}
		return a.Variable < b.Variable
	})
	return ordered, nil
}
