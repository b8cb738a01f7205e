package client

import (
	"os"
	"sync"
	"time"

	"github.com/corvidlabs/blockctl/internal/config"
	"github.com/corvidlabs/blockctl/internal/domain"
)

// recoveryDelay is the §4.4.5 pause between reloading the cookie jar
// and retrying the call once.
const recoveryDelay = 2 * time.Second

// session holds the mutable, per-client state the API client carries
// across calls: the cookie jar, the cached caller id, and the
// cookie-jar file path used to reload it on an Auth classification.
type session struct {
	mu         sync.RWMutex
	jar        *domain.CookieJar
	cookiePath string
	callerID   string
}

func newSession(jar *domain.CookieJar, cookiePath string) *session {
	return &session{jar: jar, cookiePath: cookiePath}
}

// cookieHeader re-reads the jar first if the file's mtime has changed
// since it was last loaded.
func (s *session) cookieHeader() string {
	if info, err := os.Stat(s.cookiePath); err == nil && info.ModTime().UnixNano() != s.jar.Mtime() {
		_ = config.ReloadCookieJar(s.cookiePath, s.jar)
	}
	return s.jar.Header()
}

func (s *session) csrf() string {
	return s.jar.CSRF()
}

func (s *session) cachedCallerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callerID
}

func (s *session) setCallerID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callerID = id
}

// recover implements the §4.4.5 session recovery: clear the cached
// caller id, re-read the cookie jar from disk, sleep, and let the
// caller retry exactly once. Returns the reload error, if any.
func (s *session) recover() error {
	s.mu.Lock()
	s.callerID = ""
	s.mu.Unlock()

	if err := config.ReloadCookieJar(s.cookiePath, s.jar); err != nil {
		return err
	}
	time.Sleep(recoveryDelay)
	return nil
}
