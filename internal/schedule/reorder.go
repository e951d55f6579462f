package schedule

import (
	"fmt"

	"github.com/rezkam/dayplan/internal/domain"
)

// Reorder applies a drag reorder to the agenda of date.
//
// orderedIDs must be a permutation of the IDs occurring on date. The result
// holds the other items in their input order followed by the day's items in
// the requested order, with Position renumbered from zero. On a mismatch the
// input is left untouched and ErrReorderMismatch is returned.
func Reorder(all []domain.Item, date domain.Date, orderedIDs []string) ([]domain.Item, error) {
	var others []domain.Item
	sameDate := make(map[string]domain.Item)
	for _, item := range all {
		if Occurs(item, date) {
			sameDate[item.ID] = item
		} else {
			others = append(others, item)
		}
	}

	if len(orderedIDs) != len(sameDate) {
		return nil, fmt.Errorf("%w: got %d ids, %d items on %s",
			domain.ErrReorderMismatch, len(orderedIDs), len(sameDate), date)
	}

	seen := make(map[string]bool, len(orderedIDs))
	reordered := make([]domain.Item, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate id %s", domain.ErrReorderMismatch, id)
		}
		item, ok := sameDate[id]
		if !ok {
			return nil, fmt.Errorf("%w: id %s is not on %s", domain.ErrReorderMismatch, id, date)
		}
		seen[id] = true
		reordered = append(reordered, item)
	}

	result := make([]domain.Item, 0, len(all))
	result = append(result, others...)
	result = append(result, reordered...)
	for i := range result {
		result[i].Position = i
	}
	return result, nil
}
