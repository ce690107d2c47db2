package matrix

import "github.com/avetrano/matrixflow/internal/model"

// Stats aggregates whole-network counters over the member set. NextOpenSlot
// is the username of the member who would receive the next root-sponsored
// registrant.
func Stats(members []model.Member) model.NetworkStats {
	s := model.NetworkStats{TotalMembers: len(members)}

	var rootID string
	names := make(map[string]string, len(members))
	for i := range members {
		m := &members[i]
		names[m.ID] = m.Username
		if m.Level > s.MatrixDepth {
			s.MatrixDepth = m.Level
		}
		s.TotalUtilities += len(m.Utilities)
		if m.IsRoot() {
			rootID = m.ID
		}
	}

	if rootID != "" {
		s.NextOpenSlot = names[Place(members, rootID)]
	}
	return s
}
