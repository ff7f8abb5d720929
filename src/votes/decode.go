package votes

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Direction is a resolved vote direction.
type Direction string

const (
	Aye     Direction = "Aye"
	Nay     Direction = "Nay"
	Abstain Direction = "Abstain"
)

// Parse maps a stored vote string (suggested or final vote) to a Direction.
func Parse(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aye":
		return Aye, true
	case "nay":
		return Nay, true
	case "abstain":
		return Abstain, true
	}
	return "", false
}

// DecodeRecord resolves a direction from a vote record in one of the two
// on-chain shapes:
//
//	Standard: { aye, conviction, balance }
//	Split:    { aye, nay, abstain }
//
// Standard decodes Aye/Nay from the truthiness of the aye field. Split
// decodes Abstain only when the abstain amount is nonzero and both aye and
// nay are zero; partial splits are not supported by this workflow and stay
// unresolved.
func DecodeRecord(rec map[string]interface{}) (Direction, bool) {
	if rec == nil {
		return "", false
	}

	if _, isSplit := rec["abstain"]; isSplit {
		if nonzero(rec["abstain"]) && !nonzero(rec["aye"]) && !nonzero(rec["nay"]) {
			return Abstain, true
		}
		return "", false
	}

	switch truthiness(rec["aye"]) {
	case 1:
		return Aye, true
	case -1:
		return Nay, true
	}
	return "", false
}

// DecodeLoose applies the legacy string heuristics used for raw indexer
// payloads. Abstain markers are checked first so that a serialized split
// record is not mistaken for a standard one.
func DecodeLoose(s string) (Direction, bool) {
	v := strings.ToLower(s)
	switch {
	case strings.Contains(v, "abstain"), strings.Contains(v, "split"):
		return Abstain, true
	case strings.Contains(v, "aye"), strings.Contains(v, "true"):
		return Aye, true
	case strings.Contains(v, "nay"), strings.Contains(v, "false"):
		return Nay, true
	}
	return "", false
}

// truthiness returns 1 for {true, "true", 1}, -1 for {false, "false", 0}
// and 0 for anything else (unresolved).
func truthiness(v interface{}) int {
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return -1
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true":
			return 1
		case "false":
			return -1
		case "1":
			return 1
		case "0":
			return -1
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return intTruthiness(n)
		}
	case float64:
		return intTruthiness(int64(t))
	case int:
		return intTruthiness(int64(t))
	case int64:
		return intTruthiness(t)
	case uint64:
		return intTruthiness(int64(t))
	}
	return 0
}

func intTruthiness(n int64) int {
	switch n {
	case 1:
		return 1
	case 0:
		return -1
	}
	return 0
}

// nonzero reports whether a balance-like field holds a nonzero amount.
// Amounts arrive as numbers, decimal strings or 0x-prefixed hex strings.
func nonzero(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return false
		}
		if strings.HasPrefix(s, "0x") {
			if n, err := strconv.ParseUint(s[2:], 16, 64); err == nil {
				return n != 0
			}
			return strings.Trim(s[2:], "0") != ""
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n != 0
		}
		return false
	case json.Number:
		if n, err := t.Float64(); err == nil {
			return n != 0
		}
		return false
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case uint64:
		return t != 0
	}
	return false
}
