package memory

import (
	"strconv"
	"time"

	"pdf-chat-bot/pkg/store"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps live sessions in memory. Entries linger past the
// idle timeout so the manager can apply reset-on-next-interaction semantics
// instead of losing the entity outright; go-cache purges truly dead ones.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(idleTimeout time.Duration) *SessionRepository {
	c := cache.New(4*idleTimeout, idleTimeout)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *store.Session) {
	r.cache.Set(key(session.UserId), session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(userId int64) (*store.Session, bool) {
	if x, found := r.cache.Get(key(userId)); found {
		return x.(*store.Session), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(userId int64) {
	r.cache.Delete(key(userId))
}

func key(userId int64) string {
	return strconv.FormatInt(userId, 10)
}
