package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ZelmaCorp/VotingTool-sub000/src/subscan"
	"github.com/ZelmaCorp/VotingTool-sub000/src/txlife"
	"github.com/ZelmaCorp/VotingTool-sub000/src/types"
	"github.com/ZelmaCorp/VotingTool-sub000/src/votes"
)

type fakeChain struct {
	byNet map[uint8]map[uint64]votes.Direction
}

func (f fakeChain) FetchAll(ctx context.Context, orgs []types.Org) map[uint8]map[uint64]votes.Direction {
	return f.byNet
}

type fakeIndexer struct {
	byNet map[uint8]map[uint64]subscan.IndexedVote
}

func (f fakeIndexer) FetchAll(ctx context.Context, orgs []types.Org, filter map[uint8]map[uint64]votes.Direction) map[uint8]map[uint64]subscan.IndexedVote {
	return f.byNet
}

type fixture struct {
	db  *gorm.DB
	txs *txlife.Manager
	ref types.Ref
	tx  types.PendingTx
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.Network{}, &types.Org{}, &types.Ref{},
		&types.VoteDecision{}, &types.PendingTx{},
	))

	require.NoError(t, db.Create(&types.Network{ID: 1, Name: "Polkadot", Symbol: "DOT", URL: "wss://rpc.invalid"}).Error)
	require.NoError(t, db.Create(&types.Org{ID: 1, Name: "Test DAO", NetworkID: 1, MultisigAddress: "0x01"}).Error)

	ref := types.Ref{NetworkID: 1, OrgID: 1, RefID: 42, InternalStatus: types.StatusReadyToVote, SuggestedVote: "Aye"}
	require.NoError(t, db.Create(&ref).Error)

	txs := txlife.NewManager(db)
	tx, err := txs.Propose(1, ref.ID, "0xcalldata")
	require.NoError(t, err)

	return &fixture{db: db, txs: txs, ref: ref, tx: *tx}
}

func newReconciler(f *fixture, chain ChainSource, indexer IndexerSource) *Reconciler {
	return New(f.db, chain, indexer, f.txs, nil, txlife.DefaultRetention)
}

func direction(d votes.Direction) *votes.Direction { return &d }

func TestRunResolvesVotedReferendum(t *testing.T) {
	f := setup(t)

	chain := fakeChain{byNet: map[uint8]map[uint64]votes.Direction{1: {42: votes.Aye}}}
	indexer := fakeIndexer{byNet: map[uint8]map[uint64]subscan.IndexedVote{
		1: {42: {ExtrinsicHash: "0xabc", Direction: direction(votes.Aye)}},
	}}

	r := newReconciler(f, chain, indexer)
	require.NoError(t, r.Run(context.Background()))

	var ref types.Ref
	require.NoError(t, f.db.First(&ref, f.ref.ID).Error)
	assert.Equal(t, types.StatusVotedAye, ref.InternalStatus)
	assert.Contains(t, ref.VotedLink, "0xabc")
	assert.Contains(t, ref.VotedLink, "polkadot.subscan.io")

	var decision types.VoteDecision
	require.NoError(t, f.db.Where("org_id = ? AND ref_db_id = ?", 1, f.ref.ID).First(&decision).Error)
	assert.Equal(t, "Aye", decision.FinalVote)
	assert.True(t, decision.VoteExecuted)
	require.NotNil(t, decision.VoteExecutedDate)

	var tx types.PendingTx
	require.NoError(t, f.db.First(&tx, f.tx.ID).Error)
	assert.Equal(t, types.TxExecuted, tx.Status)
	assert.Equal(t, "0xabc", tx.ExtrinsicHash)
}

func TestRunIsIdempotent(t *testing.T) {
	f := setup(t)

	chain := fakeChain{byNet: map[uint8]map[uint64]votes.Direction{1: {42: votes.Aye}}}
	indexer := fakeIndexer{byNet: map[uint8]map[uint64]subscan.IndexedVote{
		1: {42: {ExtrinsicHash: "0xabc", Direction: direction(votes.Aye)}},
	}}

	r := newReconciler(f, chain, indexer)
	require.NoError(t, r.Run(context.Background()))

	var before types.VoteDecision
	require.NoError(t, f.db.Where("ref_db_id = ?", f.ref.ID).First(&before).Error)

	require.NoError(t, r.Run(context.Background()))

	var count int64
	f.db.Model(&types.VoteDecision{}).Count(&count)
	assert.Equal(t, int64(1), count)

	var after types.VoteDecision
	require.NoError(t, f.db.Where("ref_db_id = ?", f.ref.ID).First(&after).Error)
	assert.Equal(t, before.VoteExecutedDate.Unix(), after.VoteExecutedDate.Unix())

	var tx types.PendingTx
	require.NoError(t, f.db.First(&tx, f.tx.ID).Error)
	assert.Equal(t, types.TxExecuted, tx.Status)
}

func TestChainBeatsIndexerOnDisagreement(t *testing.T) {
	f := setup(t)

	chain := fakeChain{byNet: map[uint8]map[uint64]votes.Direction{1: {42: votes.Nay}}}
	indexer := fakeIndexer{byNet: map[uint8]map[uint64]subscan.IndexedVote{
		1: {42: {ExtrinsicHash: "0xabc", Direction: direction(votes.Aye)}},
	}}

	r := newReconciler(f, chain, indexer)
	require.NoError(t, r.Run(context.Background()))

	var decision types.VoteDecision
	require.NoError(t, f.db.Where("ref_db_id = ?", f.ref.ID).First(&decision).Error)
	assert.Equal(t, "Nay", decision.FinalVote)

	var ref types.Ref
	require.NoError(t, f.db.First(&ref, f.ref.ID).Error)
	assert.Equal(t, types.StatusVotedNay, ref.InternalStatus)
	// The indexer still supplies the audit hash.
	assert.Contains(t, ref.VotedLink, "0xabc")
}

func TestNotVotedOnChainIsSkipped(t *testing.T) {
	f := setup(t)

	r := newReconciler(f,
		fakeChain{byNet: map[uint8]map[uint64]votes.Direction{}},
		fakeIndexer{byNet: map[uint8]map[uint64]subscan.IndexedVote{
			1: {42: {ExtrinsicHash: "0xabc", Direction: direction(votes.Aye)}},
		}})
	require.NoError(t, r.Run(context.Background()))

	var tx types.PendingTx
	require.NoError(t, f.db.First(&tx, f.tx.ID).Error)
	assert.Equal(t, types.TxPending, tx.Status)

	var ref types.Ref
	require.NoError(t, f.db.First(&ref, f.ref.ID).Error)
	assert.Equal(t, types.StatusReadyToVote, ref.InternalStatus)
}

func TestStaleTransactionSweptBeforeResolution(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.Model(&types.PendingTx{}).
		Where("id = ?", f.tx.ID).
		Update("timestamp", time.Now().Add(-8*24*time.Hour)).Error)

	r := newReconciler(f,
		fakeChain{byNet: map[uint8]map[uint64]votes.Direction{}},
		fakeIndexer{byNet: map[uint8]map[uint64]subscan.IndexedVote{}})
	require.NoError(t, r.Run(context.Background()))

	var tx types.PendingTx
	require.NoError(t, f.db.First(&tx, f.tx.ID).Error)
	assert.Equal(t, types.TxFailed, tx.Status)
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	f := setup(t)
	r := newReconciler(f,
		fakeChain{byNet: map[uint8]map[uint64]votes.Direction{}},
		fakeIndexer{byNet: map[uint8]map[uint64]subscan.IndexedVote{}})

	r.running.Store(true)
	assert.ErrorIs(t, r.Run(context.Background()), ErrPassInProgress)
	r.running.Store(false)

	assert.NoError(t, r.Run(context.Background()))
}

func TestSuggestionFallbackNeverOverridesChain(t *testing.T) {
	f := setup(t)
	// Chain confirms the vote exists but the indexer never saw it; the
	// suggestion is only consulted when neither source yields a direction.
	require.NoError(t, f.db.Model(&types.Ref{}).Where("id = ?", f.ref.ID).Update("suggested_vote", "Abstain").Error)

	chain := fakeChain{byNet: map[uint8]map[uint64]votes.Direction{1: {42: votes.Aye}}}
	indexer := fakeIndexer{byNet: map[uint8]map[uint64]subscan.IndexedVote{
		1: {42: {ExtrinsicHash: "0xfeed"}}, // hash only, no direction
	}}

	r := newReconciler(f, chain, indexer)
	require.NoError(t, r.Run(context.Background()))

	var decision types.VoteDecision
	require.NoError(t, f.db.Where("ref_db_id = ?", f.ref.ID).First(&decision).Error)
	assert.Equal(t, "Aye", decision.FinalVote)
}
