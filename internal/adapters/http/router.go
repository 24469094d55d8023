package http

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/camrelay/internal/adapters/rtc"
	"github.com/dkeye/camrelay/internal/adapters/signal"
	"github.com/dkeye/camrelay/internal/app/orch"
	"github.com/dkeye/camrelay/internal/config"
	"github.com/dkeye/camrelay/internal/domain"
	"github.com/dkeye/camrelay/internal/metrics"
)

const clientTokenKey = "ct"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware pins a stable per-browser token in the cookie
// session. It is only used to correlate log lines across reconnects.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type Deps struct {
	Orch     *orch.Orchestrator
	ICE      *rtc.ClientConfig
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("CamRelaySessions", store))
	r.Use(ClientTokenMiddleware())

	o := deps.Orch
	page := func(name string) string { return filepath.Join(cfg.StaticPath, name) }

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(page("index.html"))
	})
	r.GET("/stream", func(c *gin.Context) {
		c.File(page("stream.html"))
	})
	r.GET("/camera/:id", func(c *gin.Context) {
		if _, ok := o.Registry.Get(domain.CameraID(c.Param("id"))); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "camera not found or offline"})
			return
		}
		c.File(page("view.html"))
	})

	r.GET("/healthz", func(c *gin.Context) {
		s := o.Registry.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"cameras":     s.Cameras,
			"connections": s.Connections,
		})
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	// GET /api/cameras: snapshot of live cameras
	api.GET("/cameras", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Registry.List())
	})

	// GET /api/cameras/:id: single camera
	api.GET("/cameras/:id", func(c *gin.Context) {
		cam, ok := o.Registry.Get(domain.CameraID(c.Param("id")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
			return
		}
		c.JSON(http.StatusOK, cam)
	})

	// GET /api/ice-servers: RTCConfiguration for browsers
	api.GET("/ice-servers", func(c *gin.Context) {
		if deps.ICE == nil {
			c.JSON(http.StatusOK, rtc.ClientConfig{ICEServers: []rtc.ICEServer{}, ICETransportPolicy: "all"})
			return
		}
		c.JSON(http.StatusOK, deps.ICE)
	})

	ctrl := signal.NewSignalWSController(o, cfg, deps.Metrics)
	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}
