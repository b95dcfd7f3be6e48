package http

import (
	"net/http"
	"slices"
	"time"

	"github.com/dkeye/Peer/internal/app"
	"github.com/dkeye/Peer/internal/app/media"
	"github.com/dkeye/Peer/internal/config"
	"github.com/dkeye/Peer/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Health reports whether the signaling transport is up.
type Health interface {
	Connected() bool
}

type Deps struct {
	Self      domain.ParticipantID
	Registry  *app.Registry
	Receivers *media.ReceiverManager
	Health    Health
	Gatherer  prometheus.Gatherer
}

// SetupRouter exposes the debug surface:
// - GET /api/sessions lists registered sessions
// - GET /api/sessions/:id/tracks lists remote tracks received from a participant
// - GET /api/sessions/:id/tracks/:track/sinks lists the sinks of one track
// - PUT /api/sessions/:id/tracks/:track/sinks/:sink mutes or unmutes a sink
// - DELETE /api/sessions/:id/tracks/:track/sinks/:sink detaches a sink
// - GET /healthz reports transport status
// - GET /metrics serves Prometheus metrics
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	started := time.Now()

	api := r.Group("/api")
	api.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"self":     deps.Self,
			"sessions": deps.Registry.Snapshot(),
		})
	})

	api.GET("/sessions/:id/tracks", func(c *gin.Context) {
		pid, ok := participantParam(c)
		if !ok {
			return
		}
		if _, ok := deps.Registry.Get(pid); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no session for participant"})
			return
		}
		tracks := []string{}
		if deps.Receivers != nil {
			tracks = deps.Receivers.Tracks(pid)
			slices.Sort(tracks)
		}
		c.JSON(http.StatusOK, gin.H{"participant_id": pid, "tracks": tracks})
	})

	sinks := api.Group("/sessions/:id/tracks/:track/sinks")
	sinks.GET("", func(c *gin.Context) {
		pid, ok := participantParam(c)
		if !ok {
			return
		}
		if deps.Receivers == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such track"})
			return
		}
		recv, ok := deps.Receivers.Receiver(pid, c.Param("track"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such track"})
			return
		}
		states := gin.H{}
		for id, st := range recv.SinkStates() {
			states[id] = st.String()
		}
		c.JSON(http.StatusOK, gin.H{"participant_id": pid, "track_id": c.Param("track"), "sinks": states})
	})

	sinks.PUT("/:sink", func(c *gin.Context) {
		pid, ok := participantParam(c)
		if !ok {
			return
		}
		var req struct {
			Muted *bool `json:"muted" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if deps.Receivers == nil || !deps.Receivers.SetMuted(pid, c.Param("track"), c.Param("sink"), *req.Muted) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such sink"})
			return
		}
		log.Info().Str("module", "http").Str("participant", string(pid)).Str("track_id", c.Param("track")).
			Str("sink", c.Param("sink")).Bool("muted", *req.Muted).Msg("sink updated")
		c.JSON(http.StatusOK, gin.H{"sink": c.Param("sink"), "muted": *req.Muted})
	})

	sinks.DELETE("/:sink", func(c *gin.Context) {
		pid, ok := participantParam(c)
		if !ok {
			return
		}
		if deps.Receivers == nil || !deps.Receivers.RemoveSink(pid, c.Param("track"), c.Param("sink")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such sink"})
			return
		}
		log.Info().Str("module", "http").Str("participant", string(pid)).Str("track_id", c.Param("track")).
			Str("sink", c.Param("sink")).Msg("sink removed")
		c.Status(http.StatusNoContent)
	})

	r.GET("/healthz", func(c *gin.Context) {
		connected := deps.Health != nil && deps.Health.Connected()
		status := http.StatusOK
		if !connected {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"connected": connected,
			"sessions":  deps.Registry.Len(),
			"uptime":    time.Since(started).Round(time.Second).String(),
		})
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	log.Info().Str("module", "http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}

func participantParam(c *gin.Context) (domain.ParticipantID, bool) {
	pid, err := domain.ParseParticipantID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return pid, true
}
