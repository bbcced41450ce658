package middleware

import (
	"strings"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupCORS allows the configured browser origins. "*" opens the API to any
// origin without credentials; an explicit list may send cookies. The
// Content-Disposition header is exposed for record exports.
func SetupCORS(cfg config.CORSConfig) gin.HandlerFunc {
	var origins []string
	for _, o := range strings.Split(cfg.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	allowAll := len(origins) == 0 || (len(origins) == 1 && origins[0] == "*")

	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowAllOrigins:  allowAll,
		AllowCredentials: !allowAll,
		MaxAge:           12 * time.Hour,
	}
	if !allowAll {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}
