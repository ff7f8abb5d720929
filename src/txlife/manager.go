// Package txlife owns the pending -> executed/failed lifecycle of proposed
// vote transactions.
package txlife

import (
	"errors"
	"fmt"
	"time"

	"github.com/ZelmaCorp/VotingTool-sub000/src/types"
	"gorm.io/gorm"
)

// DefaultRetention is how long a pending transaction may sit in the
// external batching tool before the sweep presumes it abandoned.
const DefaultRetention = 7 * 24 * time.Hour

// ErrDuplicatePending is returned when a pending transaction already exists
// for the organization and referendum.
var ErrDuplicatePending = errors.New("pending transaction already exists")

type Manager struct {
	db *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// Propose records a vote proposed to the batching service. At most one
// pending row may exist per (org, ref); duplicates are rejected by an
// existence check, not a storage constraint.
func (m *Manager) Propose(orgID uint8, refDBID uint64, calldata string) (*types.PendingTx, error) {
	pending, err := m.Pending(orgID, refDBID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, ErrDuplicatePending
	}

	tx := types.PendingTx{
		OrgID:     orgID,
		RefDBID:   refDBID,
		Calldata:  calldata,
		Status:    types.TxPending,
		Timestamp: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := m.db.Create(&tx).Error; err != nil {
		return nil, fmt.Errorf("create pending tx: %w", err)
	}
	return &tx, nil
}

// Pending returns the pending transaction for (org, ref), or nil.
func (m *Manager) Pending(orgID uint8, refDBID uint64) (*types.PendingTx, error) {
	var tx types.PendingTx
	err := m.db.Where("org_id = ? AND ref_db_id = ? AND status = ?", orgID, refDBID, types.TxPending).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// HasPending reports whether a pending transaction exists for (org, ref).
func (m *Manager) HasPending(orgID uint8, refDBID uint64) (bool, error) {
	tx, err := m.Pending(orgID, refDBID)
	return tx != nil, err
}

// PendingAll returns every pending transaction.
func (m *Manager) PendingAll() ([]types.PendingTx, error) {
	var txs []types.PendingTx
	err := m.db.Where("status = ?", types.TxPending).Find(&txs).Error
	return txs, err
}

// MarkExecuted transitions a pending transaction to executed, recording the
// extrinsic hash when known. Matching on status = pending makes the
// transition one-way and re-runs a no-op.
func (m *Manager) MarkExecuted(id uint64, extrinsicHash string) error {
	updates := map[string]interface{}{
		"status":     types.TxExecuted,
		"updated_at": time.Now(),
	}
	if extrinsicHash != "" {
		updates["extrinsic_hash"] = extrinsicHash
	}
	return m.db.Model(&types.PendingTx{}).
		Where("id = ? AND status = ?", id, types.TxPending).
		Updates(updates).Error
}

// MarkFailed transitions a pending transaction to failed. Failed rows are
// never resurrected.
func (m *Manager) MarkFailed(id uint64) error {
	return m.db.Model(&types.PendingTx{}).
		Where("id = ? AND status = ?", id, types.TxPending).
		Updates(map[string]interface{}{
			"status":     types.TxFailed,
			"updated_at": time.Now(),
		}).Error
}

// SweepStale marks every pending transaction older than the retention
// window as failed and returns how many rows were affected.
func (m *Manager) SweepStale(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := m.db.Model(&types.PendingTx{}).
		Where("status = ? AND timestamp < ?", types.TxPending, cutoff).
		Updates(map[string]interface{}{
			"status":     types.TxFailed,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}
