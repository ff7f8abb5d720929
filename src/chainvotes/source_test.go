package chainvotes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZelmaCorp/VotingTool-sub000/src/types"
	"github.com/ZelmaCorp/VotingTool-sub000/src/votes"
)

// fakeQuerier serves canned records per track and fails on demand.
type fakeQuerier struct {
	byTrack    map[uint16][]votes.RefVote
	failTracks map[uint16]bool
}

func (f fakeQuerier) AccountVotes(ctx context.Context, account string, track uint16) ([]votes.RefVote, error) {
	if f.failTracks[track] {
		return nil, errors.New("storage query failed")
	}
	return f.byTrack[track], nil
}

func standardRecord(aye bool) map[string]interface{} {
	return map[string]interface{}{"aye": aye, "conviction": uint8(1), "balance": "1000"}
}

func abstainRecord() map[string]interface{} {
	return map[string]interface{}{"aye": "0", "nay": "0", "abstain": "500"}
}

func TestFetchAccountAggregatesTracks(t *testing.T) {
	q := fakeQuerier{byTrack: map[uint16][]votes.RefVote{
		0: {{RefID: 42, Record: standardRecord(true)}},
		1: {{RefID: 7, Record: abstainRecord()}, {RefID: 9, Record: standardRecord(false)}},
	}}
	src := NewSource(map[uint8]Querier{1: q}, map[uint8]string{1: "Polkadot"}, []uint16{0, 1})

	got := src.FetchAccount(context.Background(), 1, "multisig")
	assert.Equal(t, map[uint64]votes.Direction{
		42: votes.Aye,
		7:  votes.Abstain,
		9:  votes.Nay,
	}, got)
}

func TestFetchAccountSkipsUnresolvedRecords(t *testing.T) {
	q := fakeQuerier{byTrack: map[uint16][]votes.RefVote{
		0: {
			{RefID: 11, Record: map[string]interface{}{"aye": "300", "nay": "200"}}, // plain split
			{RefID: 12, Record: standardRecord(true)},
		},
	}}
	src := NewSource(map[uint8]Querier{1: q}, nil, []uint16{0})

	got := src.FetchAccount(context.Background(), 1, "multisig")
	assert.Equal(t, map[uint64]votes.Direction{12: votes.Aye}, got)
}

func TestFetchAccountIsolatesTrackFailures(t *testing.T) {
	q := fakeQuerier{
		byTrack: map[uint16][]votes.RefVote{
			1: {{RefID: 42, Record: standardRecord(true)}},
		},
		failTracks: map[uint16]bool{0: true},
	}
	src := NewSource(map[uint8]Querier{1: q}, nil, []uint16{0, 1})

	got := src.FetchAccount(context.Background(), 1, "multisig")
	assert.Equal(t, map[uint64]votes.Direction{42: votes.Aye}, got)
}

func TestFetchAccountWithoutQuerierIsEmpty(t *testing.T) {
	src := NewSource(map[uint8]Querier{}, nil, nil)
	got := src.FetchAccount(context.Background(), 2, "multisig")
	assert.Empty(t, got)
}

func TestFetchAllCombinesPerNetwork(t *testing.T) {
	polkadot := fakeQuerier{byTrack: map[uint16][]votes.RefVote{
		0: {{RefID: 42, Record: standardRecord(true)}},
	}}
	kusama := fakeQuerier{byTrack: map[uint16][]votes.RefVote{
		0: {{RefID: 42, Record: standardRecord(false)}},
	}}
	src := NewSource(
		map[uint8]Querier{1: polkadot, 2: kusama},
		map[uint8]string{1: "Polkadot", 2: "Kusama"},
		[]uint16{0},
	)

	orgs := []types.Org{
		{ID: 1, NetworkID: 1, MultisigAddress: "dot-multisig"},
		{ID: 2, NetworkID: 2, MultisigAddress: "ksm-multisig"},
	}

	got := src.FetchAll(context.Background(), orgs)
	require.Len(t, got, 2)

	// The same referendum id on different networks stays separate.
	assert.Equal(t, votes.Aye, got[1][42])
	assert.Equal(t, votes.Nay, got[2][42])
}

func TestFetchAllMergesOrgsOnSameNetwork(t *testing.T) {
	q := fakeQuerier{byTrack: map[uint16][]votes.RefVote{
		0: {{RefID: 42, Record: standardRecord(true)}},
	}}
	src := NewSource(map[uint8]Querier{1: q}, nil, []uint16{0})

	orgs := []types.Org{
		{ID: 1, NetworkID: 1, MultisigAddress: "multisig-a"},
		{ID: 2, NetworkID: 1, MultisigAddress: "multisig-b"},
		{ID: 3, NetworkID: 2, MultisigAddress: "no-querier"},
	}

	got := src.FetchAll(context.Background(), orgs)
	assert.Equal(t, votes.Aye, got[1][42])
	assert.Empty(t, got[2])
}

func TestDefaultTracksApplied(t *testing.T) {
	src := NewSource(nil, nil, nil)
	assert.Equal(t, DefaultTracks, src.tracks)
}
