// Package chain defines the block model of the append-only audit ledger
// and the error taxonomy shared by every layer above it.
package chain

import "time"

// GenesisDigest is the previous_digest sentinel carried by the first
// block of a chain: 64 zero hex characters, the width of a SHA-256 digest.
const GenesisDigest = "0000000000000000000000000000000000000000000000000000000000000000"

// EventType classifies what happened. The set is open: deployments may
// append event types unknown to this package, and verification treats
// them like any other block.
type EventType string

const (
	EventSystemInit EventType = "system_init"

	EventAttemptStart     EventType = "exam_attempt_start"
	EventAttemptSubmit    EventType = "exam_attempt_submit"
	EventAttemptTimeout   EventType = "exam_attempt_timeout"
	EventAttemptTerminate EventType = "exam_attempt_terminate"

	EventProctoringSuspicious EventType = "proctoring_suspicious_event"
	EventProctoringViolation  EventType = "proctoring_violation_detected"

	EventAIHighRisk  EventType = "ai_analysis_high_risk"
	EventAICompleted EventType = "ai_analysis_completed"

	EventSubmissionCreated   EventType = "submission_created"
	EventSubmissionFinalized EventType = "submission_finalized"

	EventExamPublished     EventType = "exam_published"
	EventExamStatusChanged EventType = "exam_status_changed"

	EventUserCreated     EventType = "user_created"
	EventUserRoleChanged EventType = "user_role_changed"

	EventSignerKeyRotated EventType = "signer_key_rotated"
)

// EntityType names the kind of domain object an event is about.
type EntityType string

const (
	EntitySystem        EntityType = "system"
	EntityExam          EntityType = "exam"
	EntityExamAttempt   EntityType = "exam_attempt"
	EntitySubmission    EntityType = "submission"
	EntityUser          EntityType = "user"
	EntityProctoringLog EntityType = "proctoring_log"
	EntityAIAnalysis    EntityType = "ai_analysis"
)

// Block is one immutable entry in the audit chain.
//
// Digest covers previous_digest, event_type, entity_type, entity_id,
// payload, and created_at. ID, Signature, SignatureType, and RecordedBy
// are outside the hash: the ID is a storage handle, the signature signs
// the digest and cannot cover itself, and the recording node label is
// operational metadata.
type Block struct {
	ID             string         `json:"id"`
	Sequence       uint64         `json:"sequence_index"`
	PreviousDigest string         `json:"previous_digest"`
	Digest         string         `json:"digest"`
	EventType      EventType      `json:"event_type"`
	EntityType     EntityType     `json:"entity_type"`
	EntityID       string         `json:"entity_id,omitempty"`
	Payload        map[string]any `json:"payload"`
	CreatedAt      time.Time      `json:"created_at"`
	Signature      string         `json:"signature,omitempty"`
	SignatureType  string         `json:"signature_type,omitempty"`
	RecordedBy     string         `json:"recorded_by,omitempty"`
}

// IsGenesis reports whether b is a chain's first block.
func (b *Block) IsGenesis() bool {
	return b.Sequence == 1 && b.PreviousDigest == GenesisDigest
}

// ValidDigestFormat reports whether s looks like a lowercase SHA-256 hex
// digest. It says nothing about whether the digest matches any content.
func ValidDigestFormat(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
