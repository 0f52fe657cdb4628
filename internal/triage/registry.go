package triage

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/wolfman30/healthvoice-triage/internal/conversation"
)

const defaultSessionTTL = time.Hour

// Registry holds live session controllers in memory. A session idle for
// longer than the TTL is evicted and ended.
type Registry struct {
	cache *cache.Cache
	deps  Deps
}

// NewRegistry builds a registry whose controllers share deps.
func NewRegistry(ttl time.Duration, deps Deps) *Registry {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	cleanup := ttl / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	r := &Registry{
		cache: cache.New(ttl, cleanup),
		deps:  deps.withDefaults(),
	}
	r.cache.OnEvicted(func(_ string, v interface{}) {
		if ctrl, ok := v.(*Controller); ok {
			ctrl.End()
		}
		r.deps.Metrics.SetActiveSessions(r.cache.ItemCount())
	})
	return r
}

// Start opens a session for userID greeting the patient in lang.
func (r *Registry) Start(userID string, lang conversation.Language) *Controller {
	session := conversation.NewSession("", userID, lang, r.deps.Now)
	ctrl := NewController(session, r.deps)
	r.cache.SetDefault(session.ID, ctrl)
	r.deps.Metrics.SetActiveSessions(r.cache.ItemCount())
	r.deps.Logger.Info("triage session started", "session_id", session.ID, "user_id", session.UserID, "language", string(session.Language))
	return ctrl
}

// Get returns the controller for id when userID owns it, and renews its TTL.
func (r *Registry) Get(id, userID string) (*Controller, error) {
	item, ok := r.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	ctrl, ok := item.(*Controller)
	if !ok || ctrl.UserID() != userID {
		return nil, ErrSessionNotFound
	}
	r.cache.SetDefault(id, ctrl)
	return ctrl, nil
}

// End closes one session owned by userID.
func (r *Registry) End(id, userID string) error {
	if _, err := r.Get(id, userID); err != nil {
		return err
	}
	r.cache.Delete(id)
	return nil
}

// EndForUser closes every session userID holds and reports how many.
func (r *Registry) EndForUser(userID string) int {
	ended := 0
	for id, item := range r.cache.Items() {
		if ctrl, ok := item.Object.(*Controller); ok && ctrl.UserID() == userID {
			r.cache.Delete(id)
			ended++
		}
	}
	return ended
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}
