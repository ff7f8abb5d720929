// Package reconcile resolves the team's intended votes against what was
// actually cast on-chain and drives referendum and transaction state
// forward. Passes are idempotent and safe to re-run on every cycle.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ZelmaCorp/VotingTool-sub000/src/data"
	"github.com/ZelmaCorp/VotingTool-sub000/src/subscan"
	"github.com/ZelmaCorp/VotingTool-sub000/src/txlife"
	"github.com/ZelmaCorp/VotingTool-sub000/src/types"
	"github.com/ZelmaCorp/VotingTool-sub000/src/votes"
)

// ErrPassInProgress signals that an invocation was skipped because the
// previous pass has not finished. Passes are cheap, so skipped work is
// simply picked up on the next cycle.
var ErrPassInProgress = errors.New("reconciliation pass already running")

// ChainSource is the live on-chain voting state, combined per network.
type ChainSource interface {
	FetchAll(ctx context.Context, orgs []types.Org) map[uint8]map[uint64]votes.Direction
}

// IndexerSource is the historical-extrinsic view, combined per network.
type IndexerSource interface {
	FetchAll(ctx context.Context, orgs []types.Org, filter map[uint8]map[uint64]votes.Direction) map[uint8]map[uint64]subscan.IndexedVote
}

type Reconciler struct {
	db        *gorm.DB
	chain     ChainSource
	indexer   IndexerSource
	txs       *txlife.Manager
	rdb       *redis.Client
	retention time.Duration
	running   atomic.Bool
}

func New(db *gorm.DB, chain ChainSource, indexer IndexerSource, txs *txlife.Manager, rdb *redis.Client, retention time.Duration) *Reconciler {
	if retention <= 0 {
		retention = txlife.DefaultRetention
	}
	return &Reconciler{
		db:        db,
		chain:     chain,
		indexer:   indexer,
		txs:       txs,
		rdb:       rdb,
		retention: retention,
	}
}

// Run executes one reconciliation pass. Overlapping invocations are
// skipped, not queued; the guard is a single-process atomic, which is a
// documented scaling limit if multiple instances are ever deployed.
func (r *Reconciler) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		log.Printf("reconciler: pass already running, skipping")
		return ErrPassInProgress
	}
	defer r.running.Store(false)

	runID := uuid.NewString()[:8]
	log.Printf("reconciler %s: pass started", runID)

	swept, err := r.txs.SweepStale(r.retention)
	if err != nil {
		log.Printf("reconciler %s: staleness sweep: %v", runID, err)
	} else if swept > 0 {
		log.Printf("reconciler %s: marked %d stale pending transactions failed", runID, swept)
	}

	var orgs []types.Org
	if err := r.db.Find(&orgs).Error; err != nil {
		return fmt.Errorf("load orgs: %w", err)
	}

	chainMap := r.chain.FetchAll(ctx, orgs)
	indexed := r.indexer.FetchAll(ctx, orgs, chainMap)

	pending, err := r.txs.PendingAll()
	if err != nil {
		return fmt.Errorf("load pending transactions: %w", err)
	}

	resolved := 0
	for _, tx := range pending {
		if err := r.resolveTx(ctx, runID, tx, chainMap, indexed); err != nil {
			log.Printf("reconciler %s: tx %d: %v", runID, tx.ID, err)
			continue
		}
		resolved++
	}

	log.Printf("reconciler %s: pass complete, %d pending checked, %d resolved", runID, len(pending), resolved)
	return nil
}

// resolveTx reconciles one pending transaction. The three record writes are
// sequential; transaction status is updated last and acts as the commit
// marker that keeps re-runs from double-applying.
func (r *Reconciler) resolveTx(ctx context.Context, runID string, tx types.PendingTx, chainMap map[uint8]map[uint64]votes.Direction, indexed map[uint8]map[uint64]subscan.IndexedVote) error {
	var ref types.Ref
	if err := r.db.First(&ref, tx.RefDBID).Error; err != nil {
		return fmt.Errorf("load ref %d: %w", tx.RefDBID, err)
	}

	chainDir, onChain := chainMap[ref.NetworkID][ref.RefID]
	if !onChain {
		// Not voted yet; eligible again on a future pass.
		return nil
	}

	var indexedVote *subscan.IndexedVote
	if iv, ok := indexed[ref.NetworkID][ref.RefID]; ok {
		indexedVote = &iv
	}

	// Ordered resolvers: chain is ground truth, the indexer mainly
	// contributes the transaction hash, the suggestion is a last resort
	// and never overrides a confirmed direction.
	resolvers := []struct {
		name    string
		resolve func() (votes.Direction, bool)
	}{
		{"chain", func() (votes.Direction, bool) { return chainDir, onChain }},
		{"indexer", func() (votes.Direction, bool) {
			if indexedVote != nil && indexedVote.Direction != nil {
				return *indexedVote.Direction, true
			}
			return "", false
		}},
		{"suggestion", func() (votes.Direction, bool) { return votes.Parse(ref.SuggestedVote) }},
	}

	var direction votes.Direction
	source := ""
	for _, res := range resolvers {
		if d, ok := res.resolve(); ok {
			direction, source = d, res.name
			break
		}
	}
	if source == "" {
		return fmt.Errorf("ref %d: no resolver produced a direction", ref.RefID)
	}

	hash := tx.ExtrinsicHash
	if indexedVote != nil && indexedVote.ExtrinsicHash != "" {
		hash = indexedVote.ExtrinsicHash
	}

	status := VotedStatus(direction)
	link := r.auditLink(ref.NetworkID, hash)

	refUpdates := map[string]interface{}{
		"internal_status": status,
		"updated_at":      time.Now(),
	}
	if link != "" {
		refUpdates["voted_link"] = link
	}
	if err := r.db.Model(&types.Ref{}).Where("id = ?", ref.ID).Updates(refUpdates).Error; err != nil {
		return fmt.Errorf("update ref %d: %w", ref.RefID, err)
	}

	if err := r.upsertDecision(tx.OrgID, ref, direction); err != nil {
		return fmt.Errorf("upsert decision for ref %d: %w", ref.RefID, err)
	}

	if err := r.txs.MarkExecuted(tx.ID, hash); err != nil {
		return fmt.Errorf("mark tx %d executed: %w", tx.ID, err)
	}

	log.Printf("reconciler %s: ref %d resolved %s via %s (hash %s)", runID, ref.RefID, direction, source, hash)

	if err := data.PublishVoteExecuted(ctx, r.rdb, map[string]interface{}{
		"run":     runID,
		"org":     tx.OrgID,
		"network": ref.NetworkID,
		"ref":     ref.RefID,
		"vote":    string(direction),
		"hash":    hash,
	}); err != nil {
		log.Printf("reconciler %s: publish ref %d: %v", runID, ref.RefID, err)
	}

	return nil
}

func (r *Reconciler) upsertDecision(orgID uint8, ref types.Ref, direction votes.Direction) error {
	now := time.Now()

	var decision types.VoteDecision
	err := r.db.Where("org_id = ? AND ref_db_id = ?", orgID, ref.ID).First(&decision).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		decision = types.VoteDecision{
			OrgID:            orgID,
			RefDBID:          ref.ID,
			SuggestedVote:    ref.SuggestedVote,
			FinalVote:        string(direction),
			VoteExecuted:     true,
			VoteExecutedDate: &now,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return r.db.Create(&decision).Error
	}
	if err != nil {
		return err
	}

	decision.FinalVote = string(direction)
	decision.VoteExecuted = true
	decision.VoteExecutedDate = &now
	decision.UpdatedAt = now
	return r.db.Save(&decision).Error
}

// auditLink builds the public extrinsic URL for the voted_link field.
func (r *Reconciler) auditLink(networkID uint8, hash string) string {
	if hash == "" {
		return ""
	}
	var network types.Network
	if err := r.db.First(&network, networkID).Error; err != nil {
		return ""
	}
	return fmt.Sprintf("https://%s.subscan.io/extrinsic/%s", strings.ToLower(network.Name), hash)
}

// VotedStatus maps a resolved direction to its terminal workflow status.
func VotedStatus(direction votes.Direction) string {
	switch direction {
	case votes.Aye:
		return types.StatusVotedAye
	case votes.Nay:
		return types.StatusVotedNay
	case votes.Abstain:
		return types.StatusVotedAbstain
	}
	return ""
}

// Service runs reconciliation passes on a fixed interval until the context
// is cancelled. The first pass runs immediately.
func Service(ctx context.Context, r *Reconciler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := r.Run(ctx); err != nil && !errors.Is(err, ErrPassInProgress) {
		log.Printf("reconciler: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("reconciler: service stopping")
			return
		case <-ticker.C:
			if err := r.Run(ctx); err != nil && !errors.Is(err, ErrPassInProgress) {
				log.Printf("reconciler: %v", err)
			}
		}
	}
}
