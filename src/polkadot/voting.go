package polkadot

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ZelmaCorp/VotingTool-sub000/src/addr"
	"github.com/ZelmaCorp/VotingTool-sub000/src/votes"
)

// AccountVotes returns the direct votes an account currently holds on one
// conviction-voting track, as (referendum id, raw vote record) pairs.
//
// Storage layout: ConvictionVoting.VotingFor is a double map keyed by
// (AccountId32, class u16), both Twox64Concat. The value is the Voting
// enum; only the Casting variant carries direct votes.
func (c *Client) AccountVotes(ctx context.Context, account string, track uint16) ([]votes.RefVote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized, err := addr.Normalize(account)
	if err != nil {
		return nil, fmt.Errorf("normalize account: %w", err)
	}
	accountBytes, err := DecodeHex(normalized)
	if err != nil {
		return nil, err
	}

	trackBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(trackBytes, track)

	key := StorageKey("ConvictionVoting", "VotingFor",
		Twox64Concat(accountBytes), Twox64Concat(trackBytes))

	hexVal, err := c.GetStorage(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("votingFor storage: %w", err)
	}
	if hexVal == "" || hexVal == "0x" {
		return nil, nil
	}

	raw, err := DecodeHex(hexVal)
	if err != nil {
		return nil, err
	}
	return decodeVotingFor(raw)
}

// decodeVotingFor parses the SCALE Voting enum.
//
//	0 = Casting { votes: Vec<(u32, AccountVote)>, delegations, prior }
//	1 = Delegating { .. }
//
// Delegating accounts cast no direct votes, so they decode to an empty list.
func decodeVotingFor(data []byte) ([]votes.RefVote, error) {
	if len(data) == 0 {
		return nil, nil
	}

	offset := 0
	variant := data[offset]
	offset++

	if variant != 0 {
		return nil, nil
	}

	count, n, err := DecodeCompact(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("votes length: %w", err)
	}
	offset += n

	out := make([]votes.RefVote, 0, count)
	for i := uint64(0); i < count; i++ {
		refID, next, err := readU32(data, offset)
		if err != nil {
			return out, fmt.Errorf("vote %d ref id: %w", i, err)
		}
		offset = next

		record, next, err := decodeAccountVote(data, offset)
		if err != nil {
			return out, fmt.Errorf("vote %d record: %w", i, err)
		}
		offset = next

		out = append(out, votes.RefVote{RefID: uint64(refID), Record: record})
	}

	return out, nil
}

// decodeAccountVote parses one AccountVote enum value into the generic
// Standard/Split record shape.
//
//	0 = Standard { vote: u8 (bit 7 aye, low bits conviction), balance: u128 }
//	1 = Split { aye: u128, nay: u128 }
//	2 = SplitAbstain { aye: u128, nay: u128, abstain: u128 }
func decodeAccountVote(data []byte, offset int) (map[string]interface{}, int, error) {
	if offset >= len(data) {
		return nil, 0, fmt.Errorf("missing vote variant")
	}
	variant := data[offset]
	offset++

	switch variant {
	case 0:
		if offset >= len(data) {
			return nil, 0, fmt.Errorf("missing vote byte")
		}
		voteByte := data[offset]
		offset++
		balance, next, err := readU128(data, offset)
		if err != nil {
			return nil, 0, err
		}
		return map[string]interface{}{
			"aye":        voteByte&0x80 != 0,
			"conviction": uint8(voteByte & 0x7f),
			"balance":    balance.String(),
		}, next, nil

	case 1:
		aye, next, err := readU128(data, offset)
		if err != nil {
			return nil, 0, err
		}
		nay, next, err := readU128(data, next)
		if err != nil {
			return nil, 0, err
		}
		return map[string]interface{}{
			"aye":     aye.String(),
			"nay":     nay.String(),
			"abstain": "0",
		}, next, nil

	case 2:
		aye, next, err := readU128(data, offset)
		if err != nil {
			return nil, 0, err
		}
		nay, next, err := readU128(data, next)
		if err != nil {
			return nil, 0, err
		}
		abstain, next, err := readU128(data, next)
		if err != nil {
			return nil, 0, err
		}
		return map[string]interface{}{
			"aye":     aye.String(),
			"nay":     nay.String(),
			"abstain": abstain.String(),
		}, next, nil
	}

	return nil, 0, fmt.Errorf("unknown AccountVote variant %d", variant)
}
