package crypto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proctorhq/examledger/pkg/chain"
)

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)

func TestDigestDeterministic(t *testing.T) {
	h := NewBlockHasher()

	d1, err := h.Digest(chain.GenesisDigest, chain.EventAttemptStart, chain.EntityExamAttempt, "A1",
		map[string]any{"exam_id": "E1", "student_id": "S1"}, fixedTime)
	require.NoError(t, err)

	d2, err := h.Digest(chain.GenesisDigest, chain.EventAttemptStart, chain.EntityExamAttempt, "A1",
		map[string]any{"student_id": "S1", "exam_id": "E1"}, fixedTime)
	require.NoError(t, err)

	assert.Equal(t, d1, d2, "map insertion order must not affect the digest")
	assert.True(t, chain.ValidDigestFormat(d1))
}

func TestDigestSensitiveToEveryField(t *testing.T) {
	h := NewBlockHasher()

	base, err := h.Digest(chain.GenesisDigest, chain.EventAttemptStart, chain.EntityExamAttempt, "A1",
		map[string]any{"k": "v"}, fixedTime)
	require.NoError(t, err)

	variants := []struct {
		name string
		fn   func() (string, error)
	}{
		{"previous_digest", func() (string, error) {
			return h.Digest("f"+chain.GenesisDigest[1:], chain.EventAttemptStart, chain.EntityExamAttempt, "A1", map[string]any{"k": "v"}, fixedTime)
		}},
		{"event_type", func() (string, error) {
			return h.Digest(chain.GenesisDigest, chain.EventAttemptSubmit, chain.EntityExamAttempt, "A1", map[string]any{"k": "v"}, fixedTime)
		}},
		{"entity_type", func() (string, error) {
			return h.Digest(chain.GenesisDigest, chain.EventAttemptStart, chain.EntitySubmission, "A1", map[string]any{"k": "v"}, fixedTime)
		}},
		{"entity_id", func() (string, error) {
			return h.Digest(chain.GenesisDigest, chain.EventAttemptStart, chain.EntityExamAttempt, "A2", map[string]any{"k": "v"}, fixedTime)
		}},
		{"payload", func() (string, error) {
			return h.Digest(chain.GenesisDigest, chain.EventAttemptStart, chain.EntityExamAttempt, "A1", map[string]any{"k": "w"}, fixedTime)
		}},
		{"created_at", func() (string, error) {
			return h.Digest(chain.GenesisDigest, chain.EventAttemptStart, chain.EntityExamAttempt, "A1", map[string]any{"k": "v"}, fixedTime.Add(time.Nanosecond))
		}},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			d, err := v.fn()
			require.NoError(t, err)
			assert.NotEqual(t, base, d)
		})
	}
}

func TestDigestNilPayloadEqualsEmpty(t *testing.T) {
	h := NewBlockHasher()

	d1, err := h.Digest(chain.GenesisDigest, chain.EventSystemInit, chain.EntitySystem, "", nil, fixedTime)
	require.NoError(t, err)
	d2, err := h.Digest(chain.GenesisDigest, chain.EventSystemInit, chain.EntitySystem, "", map[string]any{}, fixedTime)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
}

func TestDigestTimezoneNormalized(t *testing.T) {
	h := NewBlockHasher()
	est := time.FixedZone("EST", -5*3600)

	d1, err := h.Digest(chain.GenesisDigest, chain.EventSystemInit, chain.EntitySystem, "", nil, fixedTime)
	require.NoError(t, err)
	d2, err := h.Digest(chain.GenesisDigest, chain.EventSystemInit, chain.EntitySystem, "", nil, fixedTime.In(est))
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
}

func TestDigestBlockMatchesDigest(t *testing.T) {
	h := NewBlockHasher()

	b := &chain.Block{
		Sequence:       2,
		PreviousDigest: chain.GenesisDigest,
		EventType:      chain.EventProctoringViolation,
		EntityType:     chain.EntityExamAttempt,
		EntityID:       "A1",
		Payload:        map[string]any{"confidence": 0.95},
		CreatedAt:      fixedTime,
	}

	d, err := h.Digest(b.PreviousDigest, b.EventType, b.EntityType, b.EntityID, b.Payload, b.CreatedAt)
	require.NoError(t, err)
	rd, err := h.DigestBlock(b)
	require.NoError(t, err)

	assert.Equal(t, d, rd)
}
