package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nelc/ecommerce-hyperpay/internal/models"
)

// Identity headers injected by the authenticating frontend proxy.
const (
	headerUserID    = "X-User-Id"
	headerUsername  = "X-Username"
	headerUserEmail = "X-User-Email"
)

// sessionCookie keys the one-shot skip-status-check flag across the
// redirect hops of one browser.
const sessionCookie = "hp_sid"

const sessionCookieMaxAge = 24 * 60 * 60

// userFromRequest reads the authenticated identity. A request the proxy let
// through anonymously yields a zero snapshot.
func userFromRequest(c *gin.Context) models.UserSnapshot {
	id, _ := strconv.ParseInt(c.GetHeader(headerUserID), 10, 64)
	return models.UserSnapshot{
		ID:       id,
		Username: c.GetHeader(headerUsername),
		Email:    c.GetHeader(headerUserEmail),
	}
}

// sessionID returns the browser session id, minting the cookie on first
// contact.
func sessionID(c *gin.Context) string {
	if sid, err := c.Cookie(sessionCookie); err == nil && sid != "" {
		return sid
	}
	sid := uuid.NewString()
	c.SetCookie(sessionCookie, sid, sessionCookieMaxAge, "/", "", false, true)
	return sid
}
