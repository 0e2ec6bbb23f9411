package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// BotFlagKey is the context key set for requests from known crawlers.
const BotFlagKey = "is_bot"

// botPatterns are known bot User-Agent substrings (lowercase).
// Crawlers loading an embedding page should not inflate view counts.
var botPatterns = []string{
	"googlebot", "bingbot", "slurp", "duckduckbot",
	"baiduspider", "yandexbot", "facebookexternalhit",
	"twitterbot", "linkedinbot", "embedly", "pinterest",
	"applebot", "semrushbot", "ahrefsbot", "bytespider",
	"headlesschrome", "lighthouse",
}

// BotFilter sets the bot flag for known bot user agents so handlers can skip
// view tracking while still serving content.
func BotFilter() gin.HandlerFunc {
	return func(c *gin.Context) {
		ua := strings.ToLower(c.Request.UserAgent())
		if ua == "" || isBot(ua) {
			c.Set(BotFlagKey, true)
		}
		c.Next()
	}
}

// IsBot reports whether the bot filter flagged this request.
func IsBot(c *gin.Context) bool {
	return c.GetBool(BotFlagKey)
}

func isBot(ua string) bool {
	for _, pattern := range botPatterns {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
