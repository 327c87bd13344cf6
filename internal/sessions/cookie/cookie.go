// Package cookie identifies a user agent session with a signed cookie that
// carries only an opaque session id. The values themselves live in a
// sessions.Backend.
package cookie

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"github.com/pomerium/lineauth/internal/sessions"
)

// DefaultName is the default cookie name.
const DefaultName = "_lineauth_session"

// Options configure the session cookie.
type Options struct {
	Name     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	Expire   time.Duration
}

// Store loads and issues session cookies.
type Store struct {
	sc      *securecookie.SecureCookie
	backend sessions.Backend
	opts    Options
}

// NewStore returns a new cookie store. The secret is used to sign the cookie
// and must be at least 32 bytes long.
func NewStore(secret []byte, backend sessions.Backend, opts Options) (*Store, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("internal/sessions/cookie: secret must be at least 32 bytes, got %d", len(secret))
	}
	if backend == nil {
		return nil, errors.New("internal/sessions/cookie: backend is required")
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}

	sc := securecookie.New(secret, nil)
	sc.SetSerializer(securecookie.JSONEncoder{})
	if opts.Expire > 0 {
		sc.MaxAge(int(opts.Expire.Seconds()))
	}
	return &Store{sc: sc, backend: backend, opts: opts}, nil
}

// LoadSessionID returns the session id carried by the request cookie.
func (s *Store) LoadSessionID(r *http.Request) (string, error) {
	c, err := r.Cookie(s.opts.Name)
	if err != nil {
		return "", sessions.ErrNoSessionFound
	}
	var id string
	if err := s.sc.Decode(s.opts.Name, c.Value, &id); err != nil {
		return "", fmt.Errorf("%w: %w", sessions.ErrMalformed, err)
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %w", sessions.ErrMalformed, err)
	}
	return id, nil
}

// Load returns the correlation storage of the request's session, or
// sessions.ErrNoSessionFound if the request carries no valid session cookie.
func (s *Store) Load(r *http.Request) (sessions.Correlation, error) {
	id, err := s.LoadSessionID(r)
	if err != nil {
		return nil, err
	}
	return sessions.Bind(s.backend, id), nil
}

// LoadOrCreate returns the correlation storage of the request's session. If the
// request has no valid session a new one is started and its cookie is written
// to w.
func (s *Store) LoadOrCreate(w http.ResponseWriter, r *http.Request) (sessions.Correlation, error) {
	if c, err := s.Load(r); err == nil {
		return c, nil
	}

	id := uuid.NewString()
	encoded, err := s.sc.Encode(s.opts.Name, id)
	if err != nil {
		return nil, fmt.Errorf("internal/sessions/cookie: encode: %w", err)
	}
	http.SetCookie(w, s.newCookie(encoded))
	return sessions.Bind(s.backend, id), nil
}

// Clear removes the session cookie.
func (s *Store) Clear(w http.ResponseWriter) {
	c := s.newCookie("")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

func (s *Store) newCookie(value string) *http.Cookie {
	c := &http.Cookie{
		Name:     s.opts.Name,
		Value:    value,
		Path:     "/",
		Domain:   s.opts.Domain,
		HttpOnly: s.opts.HTTPOnly,
		Secure:   s.opts.Secure,
		SameSite: s.opts.SameSite,
	}
	if s.opts.Expire > 0 {
		c.MaxAge = int(s.opts.Expire.Seconds())
		c.Expires = time.Now().Add(s.opts.Expire)
	}
	return c
}
