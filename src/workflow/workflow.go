// Package workflow maintains the per-referendum team workflow: the
// append-only member action log, the derived categorization, and the
// agreement and deadline auto-transitions.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/ZelmaCorp/VotingTool-sub000/src/addr"
	"github.com/ZelmaCorp/VotingTool-sub000/src/types"
)

var (
	// ErrResponsibleTaken is returned when a different member already
	// holds the single responsible-person slot for the referendum.
	ErrResponsibleTaken = errors.New("responsible person already assigned")

	// ErrUnknownRole is returned for an unrecognized action kind.
	ErrUnknownRole = errors.New("unknown role type")

	// ErrSweepInProgress signals that a deadline sweep invocation was
	// skipped because the previous one has not finished.
	ErrSweepInProgress = errors.New("deadline sweep already running")
)

// concludedStatuses are the external voting-timeline markers after which
// voting is no longer possible.
var concludedStatuses = []string{"Approved", "Rejected", "Cancelled", "TimedOut", "Killed"}

// terminalStatuses are internal statuses the deadline sweep must not
// overwrite.
var terminalStatuses = []string{
	types.StatusVotedAye,
	types.StatusVotedNay,
	types.StatusVotedAbstain,
	types.StatusNotVoted,
}

var actionRoles = map[string]bool{
	types.RoleResponsiblePerson: true,
	types.RoleAgree:             true,
	types.RoleNoWay:             true,
	types.RoleRecuse:            true,
	types.RoleToBeDiscussed:     true,
}

// Category is the aggregate workflow categorization of a referendum.
type Category string

const (
	CategoryNeedsAgreement Category = "NeedsAgreement"
	CategoryReadyToVote    Category = "ReadyToVote"
	CategoryVetoed         Category = "Vetoed"
	CategoryForDiscussion  Category = "ForDiscussion"
)

// RefCategory is one categorized referendum. Veto fields are populated
// only for CategoryVetoed.
type RefCategory struct {
	Ref        types.Ref
	Category   Category
	VetoedBy   string
	VetoReason string
	VetoedAt   *time.Time
}

// Summary groups the active referendum set by category.
type Summary struct {
	NeedsAgreement []RefCategory
	ReadyToVote    []RefCategory
	Vetoed         []RefCategory
	ForDiscussion  []RefCategory
}

type Manager struct {
	db       *gorm.DB
	sweeping atomic.Bool
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// RecordAction appends a member action to a referendum's log. The
// responsible-person slot is single-assignment; every other kind is pure
// history, with the member's latest entry counting as current. Recording
// an agreement may advance the referendum to ReadyToVote.
func (m *Manager) RecordAction(refDBID uint64, member, roleType, reason string) error {
	if !actionRoles[roleType] {
		return fmt.Errorf("%w: %s", ErrUnknownRole, roleType)
	}

	var ref types.Ref
	if err := m.db.First(&ref, refDBID).Error; err != nil {
		return fmt.Errorf("load ref: %w", err)
	}

	if roleType == types.RoleResponsiblePerson {
		return m.assignResponsible(ref, member)
	}

	action := types.MemberAction{
		RefDBID:   refDBID,
		Address:   member,
		RoleType:  roleType,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := m.db.Create(&action).Error; err != nil {
		return fmt.Errorf("record action: %w", err)
	}

	if roleType == types.RoleAgree {
		if err := m.maybeAdvanceToReady(ref); err != nil {
			log.Printf("workflow: ref %d agreement transition: %v", ref.RefID, err)
		}
	}
	return nil
}

func (m *Manager) assignResponsible(ref types.Ref, member string) error {
	var existing []types.MemberAction
	err := m.db.Where("ref_db_id = ? AND role_type = ?", ref.ID, types.RoleResponsiblePerson).Find(&existing).Error
	if err != nil {
		return err
	}
	for _, action := range existing {
		if addr.Equal(action.Address, member) {
			return nil // already assigned to this member
		}
		return fmt.Errorf("%w: held by %s", ErrResponsibleTaken, action.Address)
	}

	return m.db.Create(&types.MemberAction{
		RefDBID:   ref.ID,
		Address:   member,
		RoleType:  types.RoleResponsiblePerson,
		CreatedAt: time.Now(),
	}).Error
}

// maybeAdvanceToReady applies the agreement auto-transition: a referendum
// waiting for agreement advances to ReadyToVote exactly when every team
// member's current action is agree and nobody currently vetoes. Only org
// members count toward the threshold; a veto blocks from any address.
func (m *Manager) maybeAdvanceToReady(ref types.Ref) error {
	if ref.InternalStatus != types.StatusWaitingForAgreement {
		return nil
	}

	current, err := m.currentStates(ref.ID)
	if err != nil {
		return err
	}

	members, err := m.memberAddresses(ref.OrgID)
	if err != nil {
		return err
	}

	agreeCount := 0
	for _, action := range current {
		switch action.RoleType {
		case types.RoleNoWay:
			return nil
		case types.RoleAgree:
			if isMember(members, action.Address) {
				agreeCount++
			}
		}
	}

	if len(members) == 0 || agreeCount < len(members) {
		return nil
	}

	log.Printf("workflow: ref %d reached full agreement (%d/%d), advancing to ReadyToVote", ref.RefID, agreeCount, len(members))
	return m.db.Model(&types.Ref{}).
		Where("id = ? AND internal_status = ?", ref.ID, types.StatusWaitingForAgreement).
		Updates(map[string]interface{}{
			"internal_status": types.StatusReadyToVote,
			"updated_at":      time.Now(),
		}).Error
}

// currentStates projects the action log into each member's current state:
// the latest entry per member whose kind is not responsible_person.
func (m *Manager) currentStates(refDBID uint64) (map[string]types.MemberAction, error) {
	var actions []types.MemberAction
	err := m.db.Where("ref_db_id = ?", refDBID).
		Order("created_at asc, id asc").
		Find(&actions).Error
	if err != nil {
		return nil, err
	}
	return ProjectCurrent(actions), nil
}

// ProjectCurrent derives current member states from an ordered action log.
// Pure so categorization logic stays testable in isolation.
func ProjectCurrent(actions []types.MemberAction) map[string]types.MemberAction {
	current := make(map[string]types.MemberAction)
	for _, action := range actions {
		if action.RoleType == types.RoleResponsiblePerson {
			continue
		}
		current[memberKey(action.Address)] = action
	}
	return current
}

func memberKey(address string) string {
	if normalized, err := addr.Normalize(address); err == nil {
		return normalized
	}
	return strings.ToLower(strings.TrimSpace(address))
}

func (m *Manager) memberAddresses(orgID uint8) ([]string, error) {
	var members []types.OrgMember
	if err := m.db.Where("org_id = ?", orgID).Find(&members).Error; err != nil {
		return nil, err
	}
	out := make([]string, 0, len(members))
	for _, member := range members {
		out = append(out, member.Address)
	}
	return out, nil
}

func isMember(members []string, address string) bool {
	for _, member := range members {
		if addr.Equal(member, address) {
			return true
		}
	}
	return false
}

// Categorize computes the aggregate workflow view for one organization.
// Computed fresh per query over the active referendum set; never persisted.
func (m *Manager) Categorize(orgID uint8) (*Summary, error) {
	members, err := m.memberAddresses(orgID)
	if err != nil {
		return nil, err
	}

	var refs []types.Ref
	if err := m.db.Where("org_id = ?", orgID).Find(&refs).Error; err != nil {
		return nil, err
	}

	summary := &Summary{}
	for _, ref := range refs {
		current, err := m.currentStates(ref.ID)
		if err != nil {
			return nil, err
		}
		entry, ok := categorize(ref, current, members)
		if !ok {
			continue
		}
		switch entry.Category {
		case CategoryVetoed:
			summary.Vetoed = append(summary.Vetoed, entry)
		case CategoryReadyToVote:
			summary.ReadyToVote = append(summary.ReadyToVote, entry)
		case CategoryNeedsAgreement:
			summary.NeedsAgreement = append(summary.NeedsAgreement, entry)
		case CategoryForDiscussion:
			summary.ForDiscussion = append(summary.ForDiscussion, entry)
		}
	}
	return summary, nil
}

// categorize applies the category precedence for one referendum. A current
// veto wins over everything, including full agreement. Agreement is counted
// over org members only, so a stray address in the log can never satisfy
// the threshold.
func categorize(ref types.Ref, current map[string]types.MemberAction, members []string) (RefCategory, bool) {
	agreeCount := 0
	var veto *types.MemberAction
	discussed := false
	for key := range current {
		action := current[key]
		switch action.RoleType {
		case types.RoleNoWay:
			if veto == nil || action.CreatedAt.Before(veto.CreatedAt) {
				a := action
				veto = &a
			}
		case types.RoleAgree:
			if isMember(members, action.Address) {
				agreeCount++
			}
		case types.RoleToBeDiscussed:
			discussed = true
		}
	}

	if veto != nil {
		at := veto.CreatedAt
		return RefCategory{
			Ref:        ref,
			Category:   CategoryVetoed,
			VetoedBy:   veto.Address,
			VetoReason: veto.Reason,
			VetoedAt:   &at,
		}, true
	}

	if ref.InternalStatus == types.StatusReadyToVote {
		return RefCategory{Ref: ref, Category: CategoryReadyToVote}, true
	}

	for _, terminal := range terminalStatuses {
		if ref.InternalStatus == terminal {
			return RefCategory{}, false
		}
	}

	if (ref.InternalStatus == types.StatusWaitingForAgreement || ref.InternalStatus == types.StatusReadyForApproval) &&
		agreeCount < len(members) {
		return RefCategory{Ref: ref, Category: CategoryNeedsAgreement}, true
	}

	if discussed && agreeCount == 0 {
		return RefCategory{Ref: ref, Category: CategoryForDiscussion}, true
	}

	return RefCategory{}, false
}

// SweepDeadlines forces every referendum whose external voting window has
// closed, and which never reached a terminal internal status, to NotVoted.
// The sweep runs over all referendums and is scheduled unconditionally,
// independent of any upstream metadata refresh.
func (m *Manager) SweepDeadlines(ctx context.Context) (int64, error) {
	if !m.sweeping.CompareAndSwap(false, true) {
		log.Printf("workflow: deadline sweep already running, skipping")
		return 0, ErrSweepInProgress
	}
	defer m.sweeping.Store(false)

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	result := m.db.Model(&types.Ref{}).
		Where("status IN ?", concludedStatuses).
		Where("internal_status NOT IN ?", terminalStatuses).
		Updates(map[string]interface{}{
			"internal_status": types.StatusNotVoted,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("workflow: deadline sweep moved %d referendums to NotVoted", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

// SweepService runs the deadline sweep on a fixed interval until the
// context is cancelled. The first sweep runs immediately.
func SweepService(ctx context.Context, m *Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := m.SweepDeadlines(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
		log.Printf("workflow: deadline sweep: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("workflow: sweep service stopping")
			return
		case <-ticker.C:
			if _, err := m.SweepDeadlines(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
				log.Printf("workflow: deadline sweep: %v", err)
			}
		}
	}
}
