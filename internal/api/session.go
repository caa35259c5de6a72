package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// SessionCookie carries the quota session id.
const SessionCookie = "session_id"

type sessionKey struct{}

// SessionID returns the session id the session middleware attached to ctx.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// sessionCodec signs session ids with the server secret so clients cannot
// pick another session's id. An empty secret leaves ids unsigned.
type sessionCodec struct {
	secret []byte
}

func newSessionCodec(secret string) *sessionCodec {
	return &sessionCodec{secret: []byte(secret)}
}

func (c *sessionCodec) encode(id string) string {
	if len(c.secret) == 0 {
		return id
	}
	return id + "." + c.sign(id)
}

func (c *sessionCodec) decode(value string) (string, bool) {
	if len(c.secret) == 0 {
		if _, err := uuid.Parse(value); err != nil {
			return "", false
		}
		return value, true
	}
	id, sig, ok := strings.Cut(value, ".")
	if !ok {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(c.sign(id))) {
		return "", false
	}
	return id, true
}

func (c *sessionCodec) sign(id string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

// sessions issues a session cookie on first contact and makes sure the
// quota manager knows the session, resetting its counters on a new day.
func (s *Server) sessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if ck, err := r.Cookie(SessionCookie); err == nil {
			id, _ = s.session.decode(ck.Value)
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    s.session.encode(id),
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			s.logger.Debug("session issued", "session", id)
		}
		s.deps.Quota.Touch(id)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
	})
}
