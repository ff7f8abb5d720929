package chainvotes

import (
	"context"
	"log"
	"sync"

	"github.com/ZelmaCorp/VotingTool-sub000/src/types"
	"github.com/ZelmaCorp/VotingTool-sub000/src/votes"
)

// DefaultTracks are the OpenGov track ids scanned for multisig votes.
var DefaultTracks = []uint16{
	0,  // Root
	1,  // WhitelistedCaller
	10, // StakingAdmin
	11, // Treasurer
	12, // LeaseAdmin
	13, // FellowshipAdmin
	14, // GeneralAdmin
	15, // AuctionAdmin
	20, // ReferendumCanceller
	21, // ReferendumKiller
	30, // SmallTipper
	31, // BigTipper
	32, // SmallSpender
	33, // MediumSpender
	34, // BigSpender
	1000, // WishForChange
}

// Querier is the chain query contract: the current votes an account holds
// on one conviction-voting track.
type Querier interface {
	AccountVotes(ctx context.Context, account string, track uint16) ([]votes.RefVote, error)
}

// Source reads live on-chain voting state for multisig accounts.
type Source struct {
	queriers map[uint8]Querier // per network id
	names    map[uint8]string  // network id -> name, for logs
	tracks   []uint16
}

func NewSource(queriers map[uint8]Querier, names map[uint8]string, tracks []uint16) *Source {
	if len(tracks) == 0 {
		tracks = DefaultTracks
	}
	return &Source{queriers: queriers, names: names, tracks: tracks}
}

// FetchAccount returns the resolved vote directions for one account on one
// network. Any failure degrades to an empty map; an unreachable network
// must never block the other accounts.
func (s *Source) FetchAccount(ctx context.Context, networkID uint8, account string) map[uint64]votes.Direction {
	out := make(map[uint64]votes.Direction)

	querier, ok := s.queriers[networkID]
	if !ok {
		log.Printf("chainvotes %s: no querier configured, skipping account %s", s.name(networkID), account)
		return out
	}

	for _, track := range s.tracks {
		refVotes, err := querier.AccountVotes(ctx, account, track)
		if err != nil {
			log.Printf("chainvotes %s: track %d account %s: %v", s.name(networkID), track, account, err)
			continue
		}
		for _, rv := range refVotes {
			direction, ok := votes.DecodeRecord(rv.Record)
			if !ok {
				log.Printf("chainvotes %s: ref %d account %s: unresolved vote record, skipping", s.name(networkID), rv.RefID, account)
				continue
			}
			out[rv.RefID] = direction
		}
	}

	return out
}

// FetchAll queries every organization's multisig concurrently and merges
// the results into one combined map per network. Failures are isolated per
// account/network pair.
func (s *Source) FetchAll(ctx context.Context, orgs []types.Org) map[uint8]map[uint64]votes.Direction {
	combined := make(map[uint8]map[uint64]votes.Direction)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, org := range orgs {
		wg.Add(1)
		go func(org types.Org) {
			defer wg.Done()
			found := s.FetchAccount(ctx, org.NetworkID, org.MultisigAddress)

			mu.Lock()
			defer mu.Unlock()
			if combined[org.NetworkID] == nil {
				combined[org.NetworkID] = make(map[uint64]votes.Direction)
			}
			for refID, direction := range found {
				combined[org.NetworkID][refID] = direction
			}
		}(org)
	}

	wg.Wait()
	return combined
}

func (s *Source) name(networkID uint8) string {
	if n, ok := s.names[networkID]; ok {
		return n
	}
	return "unknown"
}
