// Package preview hands out revocable references to processed image buffers
// so they can be shown as thumbnails, and tracks that each one is revoked
// exactly once.
package preview

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrRevoked is returned when a revoked handle is used.
	ErrRevoked = errors.New("preview handle revoked")

	// ErrUnknownHandle is returned for handles this registry did not create.
	ErrUnknownHandle = errors.New("unknown preview handle")

	// ErrInvalidTransition is returned for a state change the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid preview state transition")
)

// State is a handle's lifecycle position: Created, Displayed, then Revoked.
type State int

const (
	StateCreated State = iota
	StateDisplayed
	StateRevoked
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateDisplayed:
		return "displayed"
	case StateRevoked:
		return "revoked"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Mode selects how misuse is reported.
type Mode string

const (
	// ModeDevelopment panics on use after revoke.
	ModeDevelopment Mode = "development"
	// ModeProduction returns ErrRevoked on use after revoke.
	ModeProduction Mode = "production"
)

// EnvModeKey names the environment variable read by ModeFromEnv.
const EnvModeKey = "TURFPIX_ENV"

// ParseMode maps a loose mode name to a Mode. Unknown values mean production.
func ParseMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "development", "dev", "test", "testing":
		return ModeDevelopment
	default:
		return ModeProduction
	}
}

// ModeFromEnv reads EnvModeKey.
func ModeFromEnv() Mode {
	return ParseMode(os.Getenv(EnvModeKey))
}

// Handle is a revocable reference to one output buffer.
type Handle struct {
	id    string
	state State
	buf   []byte
}

// ID is the handle's process-wide unique URL-like name.
func (h *Handle) ID() string {
	return h.id
}

// Registry owns every handle it creates. It is safe for concurrent use.
type Registry struct {
	mode   Mode
	logger *zap.Logger

	mu      sync.Mutex
	handles map[string]*Handle
	live    int
}

// Option configures a Registry.
type Option func(*Registry)

func WithMode(m Mode) Option {
	return func(r *Registry) {
		r.mode = m
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry builds a registry. The mode defaults to ModeFromEnv.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		mode:    ModeFromEnv(),
		logger:  zap.NewNop(),
		handles: make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mode reports how misuse is handled.
func (r *Registry) Mode() Mode {
	return r.mode
}

// Create allocates a handle bound to buf.
func (r *Registry) Create(buf []byte) *Handle {
	h := &Handle{
		id:    "blob:turfpix/" + uuid.NewString(),
		state: StateCreated,
		buf:   buf,
	}

	r.mu.Lock()
	r.handles[h.id] = h
	r.live++
	r.mu.Unlock()

	r.logger.Debug("preview created", zap.String("handle", h.id), zap.Int("bytes", len(buf)))
	return h
}

// Display marks a created handle as shown on screen.
func (r *Registry) Display(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOwned(h); err != nil {
		return err
	}
	switch h.state {
	case StateCreated:
		h.state = StateDisplayed
		return nil
	case StateDisplayed:
		return nil
	default:
		return r.misuse(h, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, h.state, StateDisplayed))
	}
}

// Revoke releases the handle's buffer. Revoking twice is a no-op.
func (r *Registry) Revoke(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.checkOwned(h) != nil {
		return
	}
	if h.state == StateRevoked {
		r.logger.Debug("preview already revoked", zap.String("handle", h.id))
		return
	}
	r.revokeLocked(h)
}

// RevokeID revokes by handle id and reports whether a live handle was found.
func (r *Registry) RevokeID(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[id]
	if !ok || h.state == StateRevoked {
		return false
	}
	r.revokeLocked(h)
	return true
}

// Reset revokes every live handle, as when the owning form is torn down.
func (r *Registry) Reset() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	revoked := 0
	for _, h := range r.handles {
		if h.state != StateRevoked {
			r.revokeLocked(h)
			revoked++
		}
	}
	if revoked > 0 {
		r.logger.Debug("previews reset", zap.Int("revoked", revoked))
	}
	return revoked
}

// Bytes returns the buffer behind a live handle. Using a revoked handle
// panics in development mode and returns ErrRevoked otherwise.
func (r *Registry) Bytes(h *Handle) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOwned(h); err != nil {
		return nil, err
	}
	if h.state == StateRevoked {
		return nil, r.misuse(h, ErrRevoked)
	}
	return h.buf, nil
}

// State reports a handle's lifecycle position.
func (r *Registry) State(h *Handle) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return h.state
}

// Live counts handles not yet revoked.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

func (r *Registry) revokeLocked(h *Handle) {
	h.state = StateRevoked
	h.buf = nil
	r.live--
	r.logger.Debug("preview revoked", zap.String("handle", h.id))
}

func (r *Registry) checkOwned(h *Handle) error {
	if h == nil {
		return ErrUnknownHandle
	}
	if owned, ok := r.handles[h.id]; !ok || owned != h {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h.id)
	}
	return nil
}

// misuse reports a lifecycle violation. The lock is held by the caller, so
// the panic path unlocks through the caller's deferred Unlock.
func (r *Registry) misuse(h *Handle, err error) error {
	r.logger.Error("preview handle misuse", zap.String("handle", h.id), zap.Error(err))
	if r.mode == ModeDevelopment {
		panic(fmt.Sprintf("preview: %v (%s)", err, h.id))
	}
	return err
}
