package friends

import (
	"context"
	"fmt"

	"github.com/sonenae10-blip/todo/internal/store"
)

// AuditReport summarizes one consistency pass over the relationship records.
type AuditReport struct {
	Checked  int      `json:"checked"`
	Orphans  []string `json:"orphans"`
	Repaired int      `json:"repaired"`
}

// Audit looks for relationship records whose mirror is missing. With repair
// set, each orphan is deleted so the pair returns to the None state.
func (s *Service) Audit(ctx context.Context, repair bool) (AuditReport, error) {
	docs, err := s.store.Query(ctx, store.Query{Collection: store.Friends})
	if err != nil {
		return AuditReport{}, fmt.Errorf("list relationships: %w", err)
	}

	present := make(map[string]bool, len(docs))
	for _, doc := range docs {
		present[doc.ID] = true
	}

	report := AuditReport{Checked: len(docs), Orphans: []string{}}
	for _, doc := range docs {
		rel := relationshipFrom(doc)
		if rel.OwnerID == "" || rel.FriendID == "" || !present[store.PairID(rel.FriendID, rel.OwnerID)] {
			report.Orphans = append(report.Orphans, doc.ID)
		}
	}

	if !repair {
		return report, nil
	}
	for _, id := range report.Orphans {
		if err := s.store.Delete(ctx, store.Friends, id); err != nil {
			s.log.Error("failed to delete orphan relationship", "id", id, "err", err)
			continue
		}
		report.Repaired++
	}
	return report, nil
}
