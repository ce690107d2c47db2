package matrix

import "github.com/avetrano/matrixflow/internal/model"

// BuildTree constructs the matrix view rooted at rootID, or nil when rootID
// is not in the member set.
//
// A parent->children index is built once up front, so the whole construction
// is O(N) over the member set; children keep member-list insertion order.
func BuildTree(members []model.Member, rootID string) *model.MatrixNode {
	var root *model.Member
	usernames := make(map[string]string, len(members))
	byParent := make(map[string][]*model.Member, len(members))

	for i := range members {
		m := &members[i]
		usernames[m.ID] = m.Username
		if m.ParentID != "" {
			byParent[m.ParentID] = append(byParent[m.ParentID], m)
		}
		if m.ID == rootID {
			root = m
		}
	}
	if root == nil {
		return nil
	}

	var build func(m *model.Member) *model.MatrixNode
	build = func(m *model.Member) *model.MatrixNode {
		node := &model.MatrixNode{
			Member:          m.Clone(),
			Children:        []*model.MatrixNode{},
			SponsorUsername: sponsorName(usernames, m.SponsorID),
		}
		for _, child := range byParent[m.ID] {
			cn := build(child)
			node.Children = append(node.Children, cn)
			node.TotalDownline += 1 + cn.TotalDownline
			node.TotalUtilities += len(cn.Utilities) + cn.TotalUtilities
		}
		return node
	}
	return build(root)
}

func sponsorName(usernames map[string]string, sponsorID string) string {
	if sponsorID == "" {
		return model.SponsorNone
	}
	if name, ok := usernames[sponsorID]; ok {
		return name
	}
	return model.SponsorUnknown
}
