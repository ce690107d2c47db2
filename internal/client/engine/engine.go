// Package engine is the reconciliation core of the MatrixFlow client.
//
// It is the only component that writes to the local cache or the remote
// store. Reads resolve the member set remote-first with a total fallback to
// the cache; a fixed grace window preserves local writes that have not yet
// propagated to the remote store. Mutations validate locally, apply
// optimistically to the cache and session, and then submit to the remote
// store — awaited for registration, through the outbox for everything else.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/avetrano/matrixflow/internal/client/remote"
	"github.com/avetrano/matrixflow/internal/client/session"
	"github.com/avetrano/matrixflow/internal/common"
	"github.com/avetrano/matrixflow/internal/logging"
	"github.com/avetrano/matrixflow/internal/matrix"
	"github.com/avetrano/matrixflow/internal/model"
	"github.com/google/uuid"
)

// Status reports whether the last remote call succeeded.
type Status string

const (
	StatusConnected Status = "connected"
	StatusDegraded  Status = "degraded"
)

// ErrInvalidStatusChange rejects utility transitions outside
// Pending -> Active|Rejected.
var ErrInvalidStatusChange = errors.New("invalid utility status change")

// Cache is the slice of the local store the engine writes through.
type Cache interface {
	SaveSnapshot(ctx context.Context, members []model.Member) error
	LoadSnapshot(ctx context.Context) ([]model.Member, error)
}

// Engine orchestrates the remote adapter, the local cache and the session
// manager. Mutations are serialized: the durable cache is a whole-list
// rewrite, so concurrent writers in one process would lose updates.
type Engine struct {
	adapter remote.Adapter
	cache   Cache
	session *session.Manager
	outbox  *Outbox
	log     logging.Logger

	// test seams
	now   func() time.Time
	newID func() string

	mu sync.Mutex

	statusMu sync.RWMutex
	status   Status
}

func New(adapter remote.Adapter, cache Cache, sess *session.Manager, log logging.Logger) *Engine {
	return &Engine{
		adapter: adapter,
		cache:   cache,
		session: sess,
		outbox:  NewOutbox(log),
		log:     log.With("module", "engine"),
		now:     time.Now,
		newID:   uuid.NewString,
		status:  StatusConnected,
	}
}

// Close drains pending background submissions.
func (e *Engine) Close() {
	e.outbox.Close()
}

// Status returns the connectivity mode observed on the last remote call.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

func (e *Engine) setStatus(s Status) {
	e.statusMu.Lock()
	e.status = s
	e.statusMu.Unlock()
}

// Session exposes the session manager for callers that only need the
// current member.
func (e *Engine) Session() *session.Manager {
	return e.session
}

// Members resolves the current member set: remote fetch, normalization,
// empty-store seeding, grace-window merge and cache write-back, falling back
// entirely to the cache when the remote store is unreachable.
func (e *Engine) Members(ctx context.Context) ([]model.Member, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolve(ctx)
}

// resolve implements the fetch path. Callers hold e.mu.
func (e *Engine) resolve(ctx context.Context) ([]model.Member, error) {
	remoteMembers, err := e.adapter.FetchAll(ctx)
	if err != nil {
		e.setStatus(StatusDegraded)
		e.log.Warn(ctx, "remote fetch failed, using local cache", "err", err)
		return e.resolveLocal(ctx)
	}
	e.setStatus(StatusConnected)

	if len(remoteMembers) == 0 {
		// Store never seeded: push the canonical root up and carry on
		// with the singleton list.
		root, err := e.localRoot(ctx)
		if err != nil {
			return nil, err
		}
		seed := root.Clone()
		e.outbox.Enqueue(Task{
			Kind:   TaskSeedRoot,
			Submit: func(ctx context.Context) error { return e.adapter.Register(ctx, seed) },
		})
		// The empty result still goes through the grace-window merge so
		// unsynced recent members are not clobbered by the root-only set.
		merged := e.mergeRecentLocal(ctx, []model.Member{root})
		e.writeBack(ctx, merged)
		e.refreshSession(ctx, merged)
		return merged, nil
	}

	merged := e.mergeRecentLocal(ctx, remoteMembers)
	e.writeBack(ctx, merged)
	e.refreshSession(ctx, merged)
	return merged, nil
}

// resolveLocal serves the member set from the cache alone, seeding the root
// if even the cache is empty.
func (e *Engine) resolveLocal(ctx context.Context) ([]model.Member, error) {
	cached, err := e.cache.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	if len(cached) == 0 {
		root := model.NewRootMember(e.now())
		cached = []model.Member{root}
		e.writeBack(ctx, cached)
	}
	return cached, nil
}

// localRoot returns the cached root member, creating and persisting one if
// the cache has never seen it.
func (e *Engine) localRoot(ctx context.Context) (model.Member, error) {
	cached, err := e.cache.LoadSnapshot(ctx)
	if err != nil {
		return model.Member{}, fmt.Errorf("load cache: %w", err)
	}
	for i := range cached {
		if cached[i].IsRoot() {
			return cached[i].Clone(), nil
		}
	}
	return model.NewRootMember(e.now()), nil
}

// mergeRecentLocal appends cached members absent from the remote result
// whose joinedAt falls inside the grace window: writes that have not yet
// propagated. Older absentees are presumed stale and dropped. Remote wins
// everywhere else; this is the system's only conflict resolution.
func (e *Engine) mergeRecentLocal(ctx context.Context, remoteMembers []model.Member) []model.Member {
	cached, err := e.cache.LoadSnapshot(ctx)
	if err != nil {
		e.log.Warn(ctx, "cache read failed during merge", "err", err)
		return remoteMembers
	}

	seen := make(map[string]struct{}, len(remoteMembers))
	for i := range remoteMembers {
		seen[remoteMembers[i].ID] = struct{}{}
	}

	now := e.now()
	merged := remoteMembers
	for i := range cached {
		m := &cached[i]
		if _, ok := seen[m.ID]; ok {
			continue
		}
		if age := now.Sub(m.JoinedAt); age >= 0 && age <= common.GraceWindow {
			e.log.Info(ctx, "preserving unsynced local member", "id", m.ID, "age", age)
			merged = append(merged, m.Clone())
		}
	}
	return merged
}

// writeBack persists the merged set. Cache failures are logged, not
// surfaced: the in-memory result is still good.
func (e *Engine) writeBack(ctx context.Context, members []model.Member) {
	if err := e.cache.SaveSnapshot(ctx, members); err != nil {
		e.log.Error(ctx, "cache write-back failed", "err", err)
	}
}

// refreshSession pushes the merged copy of the current member back into the
// session so it tracks updates flowing through reconciliation.
func (e *Engine) refreshSession(ctx context.Context, members []model.Member) {
	current := e.session.Current()
	if current == nil {
		return
	}
	for i := range members {
		if members[i].ID == current.ID {
			if err := e.session.Set(ctx, &members[i]); err != nil {
				e.log.Warn(ctx, "session refresh failed", "err", err)
			}
			return
		}
	}
}

func findByID(members []model.Member, id string) int {
	for i := range members {
		if members[i].ID == id {
			return i
		}
	}
	return -1
}

func findByUsername(members []model.Member, username string) int {
	for i := range members {
		if members[i].UsernameEquals(username) {
			return i
		}
	}
	return -1
}

func findRoot(members []model.Member) int {
	for i := range members {
		if members[i].IsRoot() {
			return i
		}
	}
	return -1
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Username        string
	Password        string
	SponsorUsername string
	Email           string
	Phone           string
}

// RegisterResult is the outcome of a registration. RemoteErr is set when the
// authoritative store rejected or never received the write: the member is
// still usable locally for the current session, but the cloud copy is
// missing until a future reconciliation.
type RegisterResult struct {
	Member    model.Member
	RemoteErr error
}

// Register validates, places and creates a new member. The local write is
// optimistic; the remote submission is awaited and its failure reported,
// non-fatally, via RegisterResult.RemoteErr. The submission runs outside
// the engine lock so concurrent reads keep serving the cache while it is
// in flight.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	member, err := e.registerLocal(ctx, in)
	if err != nil {
		return nil, err
	}

	result := &RegisterResult{Member: *member}
	if err := e.adapter.Register(ctx, *member); err != nil {
		e.setStatus(StatusDegraded)
		e.log.Error(ctx, "remote registration failed, member kept locally",
			"username", in.Username, "err", err)
		result.RemoteErr = err
	} else {
		e.setStatus(StatusConnected)
	}
	return result, nil
}

// registerLocal performs the validation, placement and optimistic cache
// write under the engine lock and returns the new member.
func (e *Engine) registerLocal(ctx context.Context, in RegisterInput) (*model.Member, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	members, err := e.resolve(ctx)
	if err != nil {
		return nil, err
	}

	if findByUsername(members, in.Username) >= 0 {
		return nil, common.ErrDuplicateUsername
	}
	if in.Email == "" || in.Phone == "" {
		return nil, common.ErrMissingContact
	}

	sponsorIdx := findByUsername(members, in.SponsorUsername)
	if sponsorIdx < 0 {
		sponsorIdx = findRoot(members)
		if sponsorIdx < 0 {
			return nil, fmt.Errorf("member set has no root: %w", common.ErrNotFound)
		}
	}
	sponsor := members[sponsorIdx]

	parentID := matrix.Place(members, sponsor.ID)
	parentLevel := 0
	if parentIdx := findByID(members, parentID); parentIdx >= 0 {
		parentLevel = members[parentIdx].Level
	}
	if parentLevel >= common.MaxDepth {
		return nil, common.ErrDepthLimit
	}

	member := model.Member{
		ID:           e.newID(),
		Username:     in.Username,
		Password:     in.Password,
		Email:        in.Email,
		Phone:        in.Phone,
		SponsorID:    sponsor.ID,
		ParentID:     parentID,
		JoinedAt:     e.now(),
		Level:        parentLevel + 1,
		Role:         model.RoleMember,
		Utilities:    []model.Utility{},
		AvatarConfig: model.DefaultAvatar(in.Username),
	}

	// optimistic local write; it stands even if the remote call fails
	members = append(members, member)
	e.writeBack(ctx, members)

	return &member, nil
}

// UtilityInput carries a new utility contract, optionally with an attached
// document.
type UtilityInput struct {
	Type           model.UtilityType
	Provider       string
	AttachmentName string
	AttachmentType string
	AttachmentData string
}

// AddUtility appends a Pending utility to the member's portfolio. The
// returned member retains the full attachment payload; the durable cache
// copy is trimmed, and with no remote connectivity an oversized payload is
// additionally downgraded to a marker name in the cache.
func (e *Engine) AddUtility(ctx context.Context, memberID string, in UtilityInput) (*model.Member, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	members, err := e.resolve(ctx)
	if err != nil {
		return nil, err
	}

	idx := findByID(members, memberID)
	if idx < 0 {
		return nil, common.ErrNotFound
	}

	utility := model.Utility{
		ID:             e.newID(),
		Type:           in.Type,
		Provider:       in.Provider,
		DateAdded:      e.now(),
		Status:         model.UtilityStatusPending,
		AttachmentName: in.AttachmentName,
		AttachmentType: in.AttachmentType,
		AttachmentData: in.AttachmentData,
	}
	members[idx].Utilities = append(members[idx].Utilities, utility)

	e.persistWithAttachmentPolicy(ctx, members, idx, len(in.AttachmentData))
	e.refreshSession(ctx, members)

	owner := members[idx].ID
	submit := utility
	e.outbox.Enqueue(Task{
		Kind:   TaskAddUtility,
		Submit: func(ctx context.Context) error { return e.adapter.AddUtility(ctx, owner, submit) },
	})

	updated := members[idx].Clone()
	return &updated, nil
}

// persistWithAttachmentPolicy writes the snapshot, marking the freshly added
// oversized attachment as not stored when there is no remote connectivity to
// hold the canonical copy.
func (e *Engine) persistWithAttachmentPolicy(ctx context.Context, members []model.Member, idx, payloadSize int) {
	if payloadSize > common.MaxCachedAttachmentBytes && e.Status() == StatusDegraded {
		persist := model.CloneMembers(members)
		utilities := persist[idx].Utilities
		utilities[len(utilities)-1].AttachmentName = common.OversizedAttachmentMarker
		e.writeBack(ctx, persist)
		return
	}
	e.writeBack(ctx, members)
}

// UpdateUtilityStatus moves a utility to its terminal review state. Only an
// administrator may do this while connected; in degraded mode the owner may
// act directly.
func (e *Engine) UpdateUtilityStatus(ctx context.Context, memberID, utilityID string, status model.UtilityStatus) (*model.Member, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	members, err := e.resolve(ctx)
	if err != nil {
		return nil, err
	}

	idx := findByID(members, memberID)
	if idx < 0 {
		return nil, common.ErrNotFound
	}

	utilityIdx := -1
	for i := range members[idx].Utilities {
		if members[idx].Utilities[i].ID == utilityID {
			utilityIdx = i
			break
		}
	}
	if utilityIdx < 0 {
		return nil, common.ErrNotFound
	}

	if err := e.authorizeStatusChange(memberID); err != nil {
		return nil, err
	}
	if !members[idx].Utilities[utilityIdx].CanTransitionTo(status) {
		return nil, ErrInvalidStatusChange
	}

	members[idx].Utilities[utilityIdx].Status = status
	e.writeBack(ctx, members)
	e.refreshSession(ctx, members)

	e.outbox.Enqueue(Task{
		Kind:   TaskUpdateStatus,
		Submit: func(ctx context.Context) error {
			return e.adapter.UpdateUtilityStatus(ctx, memberID, utilityID, status)
		},
	})

	updated := members[idx].Clone()
	return &updated, nil
}

func (e *Engine) authorizeStatusChange(ownerID string) error {
	actor := e.session.Current()
	if actor == nil {
		return common.ErrNotAuthorized
	}
	if actor.Role == model.RoleAdmin {
		return nil
	}
	if actor.ID == ownerID && e.Status() == StatusDegraded {
		return nil
	}
	return common.ErrNotAuthorized
}

// UpdateMemberProfile patches a member's contact and avatar fields.
func (e *Engine) UpdateMemberProfile(ctx context.Context, memberID string, patch model.MemberPatch) (*model.Member, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if patch.Email != nil && *patch.Email == "" {
		return nil, common.ErrMissingContact
	}
	if patch.Phone != nil && *patch.Phone == "" {
		return nil, common.ErrMissingContact
	}

	members, err := e.resolve(ctx)
	if err != nil {
		return nil, err
	}

	idx := findByID(members, memberID)
	if idx < 0 {
		return nil, common.ErrNotFound
	}

	patch.Apply(&members[idx])
	e.writeBack(ctx, members)
	e.refreshSession(ctx, members)

	e.outbox.Enqueue(Task{
		Kind:   TaskUpdateProfile,
		Submit: func(ctx context.Context) error {
			return e.adapter.UpdateMemberFields(ctx, memberID, patch)
		},
	})

	updated := members[idx].Clone()
	return &updated, nil
}

// Login authenticates against the resolved member set and persists the
// session. For administrators it also tries, best-effort, to obtain a remote
// admin token for status updates.
func (e *Engine) Login(ctx context.Context, username, password string) (*model.Member, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	members, err := e.resolve(ctx)
	if err != nil {
		return nil, err
	}

	idx := findByUsername(members, username)
	if idx < 0 || members[idx].Password != password {
		return nil, common.ErrInvalidCredentials
	}

	if err := e.session.Set(ctx, &members[idx]); err != nil {
		return nil, err
	}

	if members[idx].Role == model.RoleAdmin && e.Status() == StatusConnected {
		if token, err := e.adapter.AdminLogin(ctx, username, password); err != nil {
			e.log.Warn(ctx, "admin token not obtained", "err", err)
		} else {
			e.adapter.SetAdminToken(token)
		}
	}

	member := members[idx].Clone()
	return &member, nil
}

// Logout clears the persisted session.
func (e *Engine) Logout(ctx context.Context) error {
	return e.session.Clear(ctx)
}

// Tree builds the matrix view rooted at rootID over the resolved member set.
func (e *Engine) Tree(ctx context.Context, rootID string) (*model.MatrixNode, error) {
	members, err := e.Members(ctx)
	if err != nil {
		return nil, err
	}
	node := matrix.BuildTree(members, rootID)
	if node == nil {
		return nil, common.ErrNotFound
	}
	return node, nil
}

// Stats aggregates network counters over the resolved member set.
func (e *Engine) Stats(ctx context.Context) (model.NetworkStats, error) {
	members, err := e.Members(ctx)
	if err != nil {
		return model.NetworkStats{}, err
	}
	return matrix.Stats(members), nil
}

// Attachment lazy-loads a utility's document payload from the remote store.
func (e *Engine) Attachment(ctx context.Context, utilityID string) (string, error) {
	return e.adapter.FetchAttachment(ctx, utilityID)
}

// ReferralLink builds the shareable signup link crediting the given sponsor.
func ReferralLink(username string) string {
	return common.ReferralBaseURL + "?ref=" + url.QueryEscape(username)
}
