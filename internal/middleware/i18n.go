// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

func I18nMiddleware(defaultLang string) gin.HandlerFunc {
	if defaultLang == "" {
		defaultLang = "en"
	}

	return func(c *gin.Context) {
		// An explicit ?lang= wins over the header
		lang := c.Query("lang")
		if lang == "" {
			lang = c.GetHeader("Accept-Language")
		}

		c.Set("lang", normalizeLang(lang, defaultLang))
		c.Next()
	}
}

// normalizeLang maps values like "zh-TW,zh;q=0.9,en;q=0.8" to a locale name.
func normalizeLang(lang, fallback string) string {
	if lang == "" {
		return fallback
	}

	first := strings.TrimSpace(strings.Split(strings.Split(lang, ",")[0], ";")[0])
	switch first {
	case "zh-TW", "zh-Hant", "zh_TW", "zh-HK":
		return "zh_TW"
	case "en", "en-US", "en-GB":
		return "en"
	default:
		return fallback
	}
}
