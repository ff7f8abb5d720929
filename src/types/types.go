package types

import "time"

// Network represents a blockchain network (Polkadot, Kusama)
type Network struct {
	ID         uint8  `gorm:"primaryKey"`
	Name       string `gorm:"size:32;unique;not null"`
	Symbol     string `gorm:"size:8;not null"`
	URL        string `gorm:"size:256;not null"`
	SubscanURL string `gorm:"size:256"`
}

// Org is an organization voting through one multisig account per network
type Org struct {
	ID              uint8  `gorm:"primaryKey"`
	Name            string `gorm:"size:64;not null"`
	NetworkID       uint8  `gorm:"index;not null"`
	MultisigAddress string `gorm:"size:64;not null"`
}

// OrgMember is a voting team member; total member count per org drives
// the agreement threshold
type OrgMember struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	OrgID   uint8  `gorm:"index;not null"`
	Address string `gorm:"size:64;not null"`
	Name    string `gorm:"size:64"`
}

// Internal workflow statuses for a referendum
const (
	StatusNotStarted          = "NotStarted"
	StatusConsidering         = "Considering"
	StatusWaitingForAgreement = "WaitingForAgreement"
	StatusReadyForApproval    = "ReadyForApproval"
	StatusReadyToVote         = "ReadyToVote"
	StatusVotedAye            = "VotedAye"
	StatusVotedNay            = "VotedNay"
	StatusVotedAbstain        = "VotedAbstain"
	StatusNotVoted            = "NotVoted"
)

// Ref represents a referendum tracked for one organization. Rows are
// created by the ingestion side and never deleted here.
type Ref struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	NetworkID      uint8  `gorm:"index:idx_ref_lookup;not null"`
	OrgID          uint8  `gorm:"index:idx_ref_lookup;not null"`
	RefID          uint64 `gorm:"index:idx_ref_lookup;not null"`
	Title          string `gorm:"size:255"`
	Status         string `gorm:"size:32"` // external voting-timeline status
	InternalStatus string `gorm:"size:32"` // workflow status, see Status* consts
	SuggestedVote  string `gorm:"size:16"`
	VotingEndDate  *time.Time
	VotedLink      string `gorm:"size:256"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// VoteDecision records the team's decision for one referendum. One row per
// (org, ref); created on first suggestion, updated when the vote executes.
// VoteExecuted == true implies FinalVote is set.
type VoteDecision struct {
	ID               uint64 `gorm:"primaryKey;autoIncrement"`
	OrgID            uint8  `gorm:"index:idx_decision,unique;not null"`
	RefDBID          uint64 `gorm:"index:idx_decision,unique;not null"`
	SuggestedVote    string `gorm:"size:16"`
	FinalVote        string `gorm:"size:16"`
	VoteExecuted     bool
	VoteExecutedDate *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PendingTx statuses
const (
	TxPending  = "pending"
	TxExecuted = "executed"
	TxFailed   = "failed"
)

// PendingTx is a vote proposed to the external batching service. At most
// one pending row per (org, ref); terminal once executed or failed.
type PendingTx struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	OrgID         uint8  `gorm:"index:idx_tx_lookup;not null"`
	RefDBID       uint64 `gorm:"index:idx_tx_lookup;not null"`
	Calldata      string `gorm:"type:text"`
	Status        string `gorm:"size:16;not null"`
	ExtrinsicHash string `gorm:"size:80"`
	Timestamp     time.Time
	UpdatedAt     time.Time
}

// Member action role types
const (
	RoleResponsiblePerson = "responsible_person"
	RoleAgree             = "agree"
	RoleNoWay             = "no_way"
	RoleRecuse            = "recuse"
	RoleToBeDiscussed     = "to_be_discussed"
)

// MemberAction is one entry in the append-only per-referendum action log.
// A member's current state is their latest non-responsible entry.
type MemberAction struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	RefDBID   uint64 `gorm:"index;not null"`
	Address   string `gorm:"size:64;not null"`
	RoleType  string `gorm:"size:32;not null"`
	Reason    string `gorm:"type:text"`
	CreatedAt time.Time
}

// Setting represents a configuration setting stored in the database
type Setting struct {
	ID     uint8  `gorm:"primaryKey"`
	Name   string `gorm:"size:32;not null"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null"`
}
