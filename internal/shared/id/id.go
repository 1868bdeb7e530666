// Package id generates the bridge's identifiers. Session ids are
// prefixed ULIDs, so logs sort by creation time and the prefix tells
// the id kind at a glance.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies one frontend session.
type SessionID string

func (id SessionID) String() string { return string(id) }

const sessionPrefix = "sess"

// Generator produces ULIDs from a shared entropy source.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator(rand.Reader)
	})
	return defaultGenerator
}

// NewGenerator creates a generator reading entropy from r. Tests pass
// a deterministic reader.
func NewGenerator(r io.Reader) *Generator {
	return &Generator{entropy: r}
}

// Generate creates one ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// NewSession generates a session id.
func (g *Generator) NewSession() SessionID {
	return SessionID(fmt.Sprintf("%s_%s", sessionPrefix, g.Generate().String()))
}

// NewSessionID generates a session id from the default generator.
func NewSessionID() SessionID {
	return Default().NewSession()
}

// Timestamp extracts the creation time from a prefixed id.
func Timestamp(id string) (time.Time, error) {
	_, raw, found := strings.Cut(id, "_")
	if !found {
		raw = id
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

// IsValidSessionID reports whether id is a well-formed session id.
func IsValidSessionID(id string) bool {
	raw, ok := strings.CutPrefix(id, sessionPrefix+"_")
	if !ok {
		return false
	}
	_, err := ulid.Parse(raw)
	return err == nil
}
