package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewSessionID returns a random chat session id.
func NewSessionID() string {
	return "chat_" + uuid.NewString()
}

// NewJobID returns a time-sortable job id.
func NewJobID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return "job_" + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewToken returns an opaque random token (lock owners, trace ids).
func NewToken() string {
	return uuid.NewString()
}
