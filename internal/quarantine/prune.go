package quarantine

import (
	"fmt"
)

// DefaultKeepCount is the default number of quarantined files to retain.
const DefaultKeepCount = 10

// PruneResult contains information about what was pruned.
type PruneResult struct {
	Deleted []Record `json:"deleted" yaml:"deleted"`
	Kept    int      `json:"kept" yaml:"kept"`
}

// String renders the result for text output.
func (r PruneResult) String() string {
	return fmt.Sprintf("deleted %d, kept %d", len(r.Deleted), r.Kept)
}

// Prune removes old entries, keeping only the most recent keep entries.
func (m *Manager) Prune(keep int) (*PruneResult, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep count must be non-negative")
	}

	records, err := m.List()
	if err != nil {
		return nil, err
	}

	result := &PruneResult{Deleted: []Record{}}

	// Records are already sorted newest first
	if len(records) <= keep {
		result.Kept = len(records)
		return result, nil
	}

	result.Kept = keep
	for _, rec := range records[keep:] {
		if err := m.Delete(rec.ID); err != nil {
			return nil, fmt.Errorf("failed to delete quarantine entry %s: %w", rec.ID, err)
		}
		result.Deleted = append(result.Deleted, rec)
	}

	return result, nil
}
