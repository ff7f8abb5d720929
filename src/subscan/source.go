package subscan

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/ZelmaCorp/VotingTool-sub000/src/logging"
	"github.com/ZelmaCorp/VotingTool-sub000/src/types"
	"github.com/ZelmaCorp/VotingTool-sub000/src/votes"
)

// DefaultRows bounds how much history is pulled per account per pass.
const DefaultRows = 50

// The referendum index parameter was renamed upstream; both names occur in
// historical extrinsics.
var refIndexParams = []string{"poll_index", "ref_index"}

// IndexedVote is the indexer's view of one cast vote: the extrinsic hash
// for the audit link, and the direction when it could be parsed.
type IndexedVote struct {
	ExtrinsicHash string
	Direction     *votes.Direction
}

// Source corroborates on-chain votes against historical extrinsics and
// supplies the auditable transaction reference.
type Source struct {
	clients map[uint8]*Client // per network id
	names   map[uint8]string
	rows    int
}

func NewSource(clients map[uint8]*Client, names map[uint8]string, rows int) *Source {
	if rows <= 0 {
		rows = DefaultRows
	}
	return &Source{clients: clients, names: names, rows: rows}
}

// FetchAccount scans one account's recent history for vote extrinsics whose
// referendum id is in the filter set. Failures (including rate limits)
// degrade to an empty result.
func (s *Source) FetchAccount(ctx context.Context, networkID uint8, account string, filter map[uint64]votes.Direction) map[uint64]IndexedVote {
	out := make(map[uint64]IndexedVote)

	client, ok := s.clients[networkID]
	if !ok {
		log.Printf("subscan %s: no client configured, skipping account %s", s.name(networkID), account)
		return out
	}

	extrinsics, err := client.Extrinsics(ctx, account, s.rows, 0)
	if err != nil {
		if logging.IsRateLimit(err) {
			log.Printf("subscan %s: rate limited for account %s: %v", s.name(networkID), account, err)
		} else {
			log.Printf("subscan %s: account %s: %v", s.name(networkID), account, err)
		}
		return out
	}

	for _, ext := range extrinsics {
		if !isVoteCall(ext) {
			continue
		}

		refID, ok := extractRefID(ext.Params)
		if !ok {
			log.Printf("subscan %s: vote extrinsic %s has no referendum index, skipping", s.name(networkID), ext.ExtrinsicHash)
			continue
		}
		if _, wanted := filter[refID]; !wanted {
			continue
		}
		// Newest first; keep the most recent vote per referendum.
		if _, seen := out[refID]; seen {
			continue
		}

		iv := IndexedVote{ExtrinsicHash: ext.ExtrinsicHash}
		if direction, ok := extractDirection(ext.Params); ok {
			iv.Direction = &direction
		}
		out[refID] = iv
	}

	return out
}

// FetchAll scans every organization's multisig concurrently, merging into
// one combined map per network.
func (s *Source) FetchAll(ctx context.Context, orgs []types.Org, filter map[uint8]map[uint64]votes.Direction) map[uint8]map[uint64]IndexedVote {
	combined := make(map[uint8]map[uint64]IndexedVote)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, org := range orgs {
		wg.Add(1)
		go func(org types.Org) {
			defer wg.Done()
			found := s.FetchAccount(ctx, org.NetworkID, org.MultisigAddress, filter[org.NetworkID])

			mu.Lock()
			defer mu.Unlock()
			if combined[org.NetworkID] == nil {
				combined[org.NetworkID] = make(map[uint64]IndexedVote)
			}
			for refID, iv := range found {
				if _, seen := combined[org.NetworkID][refID]; !seen {
					combined[org.NetworkID][refID] = iv
				}
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

func isVoteCall(ext Extrinsic) bool {
	module := strings.ToLower(ext.CallModule)
	function := strings.ToLower(ext.CallModuleFunction)
	return module == "convictionvoting" && function == "vote"
}

// extractRefID reads the referendum index from the call parameters,
// accepting both historical parameter names and number or string values.
func extractRefID(params []Param) (uint64, bool) {
	for _, name := range refIndexParams {
		for _, p := range params {
			if p.Name != name {
				continue
			}
			var asNum uint64
			if err := json.Unmarshal(p.Value, &asNum); err == nil {
				return asNum, true
			}
			var asStr string
			if err := json.Unmarshal(p.Value, &asStr); err == nil {
				if n, err := strconv.ParseUint(strings.TrimSpace(asStr), 10, 64); err == nil {
					return n, true
				}
			}
		}
	}
	return 0, false
}

// extractDirection decodes the vote parameter: structured Standard/Split
// records first (at any wrapping depth, since the indexer nests the enum as
// {"Standard": {"vote": {...}}}), with the loose string heuristics for raw
// string payloads.
func extractDirection(params []Param) (votes.Direction, bool) {
	for _, p := range params {
		if p.Name != "vote" {
			continue
		}
		var v interface{}
		if err := json.Unmarshal(p.Value, &v); err != nil {
			return votes.DecodeLoose(string(p.Value))
		}
		return resolveVoteValue(v)
	}
	return "", false
}

func resolveVoteValue(v interface{}) (votes.Direction, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		if direction, ok := votes.DecodeRecord(t); ok {
			return direction, true
		}
		for _, inner := range t {
			if direction, ok := resolveVoteValue(inner); ok {
				return direction, true
			}
		}
	case string:
		return votes.DecodeLoose(t)
	}
	return "", false
}
