package votes

// RefVote is one (referendum, vote record) pair as reported by a source.
// Record carries the raw Standard/Split shape consumed by DecodeRecord.
type RefVote struct {
	RefID  uint64
	Record map[string]interface{}
}
