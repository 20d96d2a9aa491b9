package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bedrocknet/bedrocknet/internal/util"
)

const defaultSessionLimit = 50

// handleGetSessions returns recent sessions, newest first.
func (s *Server) handleGetSessions(c *gin.Context) {
	limit := defaultSessionLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	sessions, err := s.store.RecentSessions(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// handleGetActiveSessions returns sessions currently in the active state.
func (s *Server) handleGetActiveSessions(c *gin.Context) {
	sessions, err := s.store.ActiveSessions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// handleGetBans returns all ban entries.
func (s *Server) handleGetBans(c *gin.Context) {
	bans, err := s.store.Bans()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bans":  bans,
		"total": len(bans),
	})
}

// banRequest is the JSON body for creating a ban.
type banRequest struct {
	XUID          string `json:"xuid"`
	Addr          string `json:"addr"`
	Reason        string `json:"reason"`
	DurationHours int    `json:"duration_hours"`
}

// handleAddBan creates a new ban entry.
func (s *Server) handleAddBan(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.XUID == "" && req.Addr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ban requires an xuid or an address"})
		return
	}

	var expiresAt *time.Time
	if req.DurationHours > 0 {
		t := time.Now().UTC().Add(time.Duration(req.DurationHours) * time.Hour)
		expiresAt = &t
	}

	if err := s.store.AddBan(req.XUID, req.Addr, req.Reason, expiresAt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "banned"})
}

// handleRemoveBan deletes a ban entry by ID.
func (s *Server) handleRemoveBan(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ban id"})
		return
	}

	if err := s.store.RemoveBan(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// handleGetSystem returns host CPU, memory, and disk usage.
func (s *Server) handleGetSystem(c *gin.Context) {
	cpuUsage, err := util.GetCPUUsage()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	mem, err := util.GetMemoryUsage()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	diskUsage, err := util.GetDiskUsage(".")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cpu_percent": cpuUsage,
		"memory":      mem,
		"disk":        diskUsage,
	})
}

// handleGetConfig returns the server configuration section.
// Application data is omitted since it may contain file paths and
// certificate locations.
func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"server": s.cfg.GetServer(),
	})
}
