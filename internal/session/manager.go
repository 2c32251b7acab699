package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/prefcenter/internal/apperr"
	"github.com/starford/prefcenter/internal/form"
	"github.com/starford/prefcenter/internal/persistence"
	"github.com/starford/prefcenter/internal/storage"
)

// DefaultSessionID names the session whose configuration lives under the
// bare store key.
const DefaultSessionID = "default"

var sessionIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ManagerConfig configures how a Manager builds sessions.
type ManagerConfig struct {
	// BaseKey is the store key of the default session; other sessions use
	// BaseKey + "." + id. Defaults to persistence.DefaultKey.
	BaseKey string
	// RestoreValues makes sessions reload saved item values.
	RestoreValues bool
	// NewIDGenerator returns the instance id generator for a new session.
	// Defaults to form.NewTimestampIDs.
	NewIDGenerator func() form.IDGenerator
	// OnEvent receives the events of every session.
	OnEvent EventFunc
	Logger  *slog.Logger
}

// Manager owns one Controller per session id. Sessions share only the store.
type Manager struct {
	mu       sync.Mutex
	store    storage.Provider
	cfg      ManagerConfig
	sessions map[string]*Controller
}

// NewManager creates a manager over store.
func NewManager(store storage.Provider, cfg ManagerConfig) *Manager {
	if cfg.BaseKey == "" {
		cfg.BaseKey = persistence.DefaultKey
	}
	if cfg.NewIDGenerator == nil {
		cfg.NewIDGenerator = func() form.IDGenerator { return form.NewTimestampIDs() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		store:    store,
		cfg:      cfg,
		sessions: make(map[string]*Controller),
	}
}

// ValidID reports whether id can name a session.
func ValidID(id string) bool {
	return sessionIDRe.MatchString(id)
}

// StoreKey returns the store key for session id.
func (m *Manager) StoreKey(id string) string {
	if id == DefaultSessionID {
		return m.cfg.BaseKey
	}
	return m.cfg.BaseKey + "." + id
}

// Get returns the controller for id, creating it and loading its saved
// configuration on first use. A corrupt saved configuration is logged and the
// session starts empty. Any other load failure is returned and nothing is
// cached, so the next Get retries the load.
func (m *Manager) Get(ctx context.Context, id string) (*Controller, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("session: invalid id %q: %w", id, apperr.ErrNotFound)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.sessions[id]; ok {
		return c, nil
	}

	c := NewController(
		form.New(form.WithIDGenerator(m.cfg.NewIDGenerator())),
		persistence.NewGateway(m.store,
			persistence.WithKey(m.StoreKey(id)),
			persistence.WithRestoreValues(m.cfg.RestoreValues),
		),
		WithID(id),
		WithLogger(m.cfg.Logger),
		WithEventFunc(m.cfg.OnEvent),
	)
	if _, err := c.Open(ctx); err != nil {
		if !errors.Is(err, apperr.ErrCorruptState) && !errors.Is(err, apperr.ErrInvalidSnapshot) {
			return nil, err
		}
		m.cfg.Logger.Warn("session: starting empty", slog.String("session", id), slog.String("error", err.Error()))
	}
	m.sessions[id] = c
	return c, nil
}

// Create starts a new session with a generated id.
func (m *Manager) Create(ctx context.Context) (*Controller, error) {
	return m.Get(ctx, uuid.NewString())
}

// Close forgets the in-memory session for id. Its saved configuration stays
// in the store.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// IDs returns the ids of the open sessions, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
