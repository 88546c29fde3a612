package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mcuredefined/backend/pkg/response"
)

// Health reports liveness plus the reachability of both databases. The user
// database being down degrades the report but keeps the status ok, matching
// the fail-open behavior of author resolution.
func Health(contentDB, userDB *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload := gin.H{
			"status":     "ok",
			"content_db": pingState(c, contentDB),
			"user_db":    pingState(c, userDB),
		}

		if payload["content_db"] != "up" {
			payload["status"] = "degraded"
		}
		response.Success(c, http.StatusOK, payload)
	}
}

func pingState(c *gin.Context, db *gorm.DB) string {
	if db == nil {
		return "absent"
	}
	sqlDB, err := db.DB()
	if err != nil {
		return "down"
	}
	if err := sqlDB.PingContext(requestContext(c)); err != nil {
		return "down"
	}
	return "up"
}

// Root serves a minimal index payload for uptime probes hitting /.
func Root(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"service": "mcu-redefined-backend"})
}
