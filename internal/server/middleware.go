package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

const signatureWindow = 5 * time.Minute

// adminAuth verifies operator requests. The caller sends its key, a unix
// timestamp, and an HMAC-SHA256 signature of "timestamp:method:path" under
// the shared secret. Stale timestamps are rejected to stop replays.
func (s *Server) adminAuth(c *fiber.Ctx) error {
	if c.Get("X-Admin-Key") != s.adminKey {
		return jsonError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "unknown admin key")
	}

	ts := c.Get("X-Timestamp")
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return jsonError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "missing or malformed timestamp")
	}
	if d := time.Since(time.Unix(unix, 0)); d > signatureWindow || d < -signatureWindow {
		return jsonError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "timestamp outside allowed window")
	}

	mac := hmac.New(sha256.New, []byte(s.adminSecret))
	mac.Write([]byte(ts + ":" + c.Method() + ":" + c.Path()))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(c.Get("X-Signature"))) {
		s.log.Warn().Str("path", c.Path()).Msg("admin request with bad signature")
		return jsonError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "invalid signature")
	}

	return c.Next()
}
