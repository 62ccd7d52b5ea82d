package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	alertDomain "nifty-breakout/internal/domain/alert"

	"github.com/gin-gonic/gin"
)

const defaultAlertLimit = 50

func (s *Server) handleListAlerts(c *gin.Context) {
	limit := defaultAlertLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, errCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	unreadOnly := c.Query("unread") == "true"

	list, err := s.deps.Alerts.List(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, errCodeInternal, err.Error())
		return
	}
	out := make([]alertView, 0, limit)
	for _, a := range list {
		if unreadOnly && a.Read {
			continue
		}
		out = append(out, toAlertView(a))
		if len(out) == limit {
			break
		}
	}
	writeOK(c, http.StatusOK, gin.H{"alerts": out, "count": len(out)})
}

func (s *Server) handleUnreadCount(c *gin.Context) {
	n, err := s.deps.Alerts.UnreadCount(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, errCodeInternal, err.Error())
		return
	}
	writeOK(c, http.StatusOK, gin.H{"unread": n})
}

// handleMarkRead 是警報 Read 欄位唯一的變更入口。
func (s *Server) handleMarkRead(c *gin.Context) {
	id := c.Param("id")
	if err := s.deps.Alerts.MarkRead(c.Request.Context(), id); err != nil {
		if errors.Is(err, alertDomain.ErrNotFound) {
			writeError(c, http.StatusNotFound, errCodeNotFound, "alert not found")
			return
		}
		writeError(c, http.StatusInternalServerError, errCodeInternal, err.Error())
		return
	}
	writeOK(c, http.StatusOK, gin.H{"id": id})
}
