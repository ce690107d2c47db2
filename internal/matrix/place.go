// Package matrix implements the pure tree logic of the forced 10x10 matrix:
// breadth-first placement of new registrants, recursive tree construction
// with rolled-up downline metrics, and whole-network statistics.
//
// Functions here never mutate their inputs and perform no I/O; the
// reconciliation engine resolves the member set first and calls in.
package matrix

import (
	"github.com/avetrano/matrixflow/internal/common"
	"github.com/avetrano/matrixflow/internal/model"
)

// childIDIndex maps each parent id to the ids of its direct placements,
// preserving member-list insertion order.
func childIDIndex(members []model.Member) map[string][]string {
	byParent := make(map[string][]string, len(members))
	for i := range members {
		if p := members[i].ParentID; p != "" {
			byParent[p] = append(byParent[p], members[i].ID)
		}
	}
	return byParent
}

// Place computes the parent slot for a registrant invited by sponsorID.
//
// The search is breadth-first from the sponsor: the first visited member with
// fewer than MatrixWidth direct placements wins, so the result is always the
// shallowest, left-most open slot and is deterministic for a fixed member
// set. The caller must resolve an unknown sponsor to the root before calling,
// and must reject the placement when the returned parent's level would break
// the depth cap.
//
// If the whole subtree is full the sponsor id itself is returned as a
// last-resort fallback; the caller's depth check rejects it.
func Place(members []model.Member, sponsorID string) string {
	byParent := childIDIndex(members)

	queue := []string{sponsorID}
	for len(queue) > 0 {
		candidate := queue[0]
		queue = queue[1:]

		children := byParent[candidate]
		if len(children) < common.MatrixWidth {
			return candidate
		}
		queue = append(queue, children...)
	}
	return sponsorID
}
