package model

// Sentinels for MatrixNode.SponsorUsername when the sponsor reference is
// empty or dangling.
const (
	SponsorNone    = "none"
	SponsorUnknown = "unknown"
)

// MatrixNode is the derived per-query tree view of a member: the member
// itself plus its constructed subtree and rolled-up downstream counts.
// Nodes are rebuilt on every query and never mutated in place.
type MatrixNode struct {
	Member
	Children []*MatrixNode `json:"children"`

	// TotalDownline counts every descendant in the subtree.
	TotalDownline int `json:"totalDownline"`

	// TotalUtilities counts utilities across all descendants, excluding
	// the node's own ("downstream volume" semantics).
	TotalUtilities int `json:"totalUtilities"`

	SponsorUsername string `json:"sponsorUsername"`
}

// NetworkStats is an aggregate snapshot over the whole member set.
type NetworkStats struct {
	TotalMembers   int    `json:"totalMembers"`
	MatrixDepth    int    `json:"matrixDepth"`
	TotalUtilities int    `json:"totalUtilities"`
	NextOpenSlot   string `json:"nextOpenSlot"`
}
