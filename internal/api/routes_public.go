package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bedrocknet/bedrocknet/internal/util"
	"github.com/bedrocknet/bedrocknet/protocol"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "bedrockd",
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleGetServerInfo returns basic server information.
func (s *Server) handleGetServerInfo(c *gin.Context) {
	server := s.cfg.GetServer()
	sysInfo := util.GetSystemInfo()

	active, err := s.store.ActiveSessionCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session count unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"server_name":     server.Name,
		"server_location": server.Location,
		"listen_addr":     server.ListenAddr,
		"transport":       server.Transport,
		"compression":     server.Compression,
		"max_players":     server.MaxPlayers,
		"active_sessions": active,
		"platform":        sysInfo.Platform,
		"cpu_cores":       sysInfo.CPUCores,
		"total_memory_mb": sysInfo.TotalMemory,
	})
}

// handleGetProtocolInfo returns the protocol version and registered packet IDs.
func (s *Server) handleGetProtocolInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"protocol":       protocol.CurrentProtocol,
		"version":        protocol.CurrentVersion,
		"packets":        s.registry.Len(),
		"registered_ids": s.registry.IDs(),
	})
}
