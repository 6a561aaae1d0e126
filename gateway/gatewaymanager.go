package gateway

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/scrtlabs/secret-ai-hub/event"
	"github.com/scrtlabs/secret-ai-hub/gateway/config"
)

const apiVersion = "1.0.0"

// ChatCompletedEvent fires after a chat call has been appended to its
// session.
type ChatCompletedEvent struct {
	Model        string `json:"model"`
	SessionID    string `json:"session_id"`
	HasReasoning bool   `json:"has_reasoning"`
}

// UpstreamStateChangeEvent fires whenever a health check observes the
// upstream connection state.
type UpstreamStateChangeEvent struct {
	Connected       bool `json:"connected"`
	AvailableModels int  `json:"available_models"`
}

// ConfigReloadedEvent fires after the config file has been reloaded.
type ConfigReloadedEvent struct{}

type GatewayManager struct {
	sync.Mutex

	config    config.Config
	ginEngine *gin.Engine
	logger    *log.Logger

	sessions     SessionStore
	registry     *ModelRegistry
	secretClient *SecretAIClient

	// shutdown signaling
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc

	// version info
	buildDate string
	commit    string
	version   string

	// absolute or relative path to active config file
	configPath string

	// in-memory ring of recent chat activity
	activityPromptPreviews []ActivityPromptPreview
	activityNextPromptID   int
}

func New(cfg config.Config) *GatewayManager {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "gateway",
	})

	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	gm := &GatewayManager{
		config:    cfg,
		ginEngine: gin.New(),
		logger:    logger,

		sessions:     NewMemorySessionStore(cfg.MaxSessionTurns),
		registry:     NewModelRegistry(cfg.Upstream.Endpoints),
		secretClient: NewSecretAIClient(cfg.Upstream.APIKey),

		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,

		buildDate: "unknown",
		commit:    "abcd1234",
		version:   "0",

		configPath:             "config.yaml",
		activityPromptPreviews: make([]ActivityPromptPreview, 0),
	}

	gm.setupGinEngine()
	return gm
}

func (gm *GatewayManager) setupGinEngine() {

	gm.ginEngine.Use(func(c *gin.Context) {
		// Start timer
		start := time.Now()

		clientIP := c.ClientIP()
		method := c.Request.Method
		path := c.Request.URL.Path

		// Process request
		c.Next()

		// Stop timer
		duration := time.Since(start)

		statusCode := c.Writer.Status()
		bodySize := c.Writer.Size()

		gm.logger.Infof("Request %s \"%s %s %s\" %d %d \"%s\" %v",
			clientIP,
			method,
			path,
			c.Request.Proto,
			statusCode,
			bodySize,
			c.Request.UserAgent(),
			duration,
		)
	})

	// nothing may escape as an unhandled fault; a panic becomes a 500
	gm.ginEngine.Use(func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				gm.logger.Errorf("panic recovered in %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"message": "Internal server error",
					"error":   fmt.Sprint(r),
				})
			}
		}()
		c.Next()
	})

	// respond with permissive OPTIONS for any endpoint; preflight responses
	// are cached for 24 hours
	gm.ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && gm.getConfig().AllowsOrigin(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == "OPTIONS" {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			if headers := c.Request.Header.Get("Access-Control-Request-Headers"); headers != "" {
				c.Header("Access-Control-Allow-Headers", headers)
			} else {
				c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, X-Requested-With, X-API-Key")
			}
			c.Header("Access-Control-Max-Age", "86400")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// see: gatewaymanager_api.go
	addAPIHandlers(gm)

	gm.ginEngine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	// Disable console color for testing
	gin.DisableConsoleColor()
}

// ServeHTTP implements http.Handler interface
func (gm *GatewayManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gm.ginEngine.ServeHTTP(w, r)
}

// Shutdown signals all long-lived handlers (SSE streams) to terminate.
func (gm *GatewayManager) Shutdown() {
	gm.logger.Debug("Shutdown() called in gateway manager")
	gm.shutdownCancel()
}

func (gm *GatewayManager) SetConfigPath(path string) {
	gm.Lock()
	defer gm.Unlock()
	if path = strings.TrimSpace(path); path != "" {
		gm.configPath = path
	}
}

func (gm *GatewayManager) SetVersionInfo(version, commit, buildDate string) {
	gm.Lock()
	defer gm.Unlock()
	gm.version = version
	gm.commit = commit
	gm.buildDate = buildDate
}

func (gm *GatewayManager) getConfig() config.Config {
	gm.Lock()
	defer gm.Unlock()
	return gm.config
}

// reloadConfigFromDisk re-reads the active config file and swaps in the new
// settings. Sessions survive a reload; the upstream candidates and API keys
// do not carry stale state.
func (gm *GatewayManager) reloadConfigFromDisk() error {
	gm.Lock()
	cfgPath := strings.TrimSpace(gm.configPath)
	gm.Unlock()
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	newCfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	gm.Lock()
	gm.config = newCfg
	gm.registry = NewModelRegistry(newCfg.Upstream.Endpoints)
	gm.secretClient = NewSecretAIClient(newCfg.Upstream.APIKey)
	gm.Unlock()

	event.Emit(ConfigReloadedEvent{})
	return nil
}

// ReloadConfig is the public entry point used by the fsnotify watcher.
func (gm *GatewayManager) ReloadConfig() error {
	return gm.reloadConfigFromDisk()
}

func (gm *GatewayManager) getRegistry() *ModelRegistry {
	gm.Lock()
	defer gm.Unlock()
	return gm.registry
}

func (gm *GatewayManager) getSecretClient() *SecretAIClient {
	gm.Lock()
	defer gm.Unlock()
	return gm.secretClient
}

// apiKeyAuth gates requests on X-API-Key, but only in production; the
// development default performs no check.
func (gm *GatewayManager) apiKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := gm.getConfig()
		if cfg.Environment != config.EnvProduction || strings.TrimSpace(cfg.APIKey) == "" {
			c.Next()
			return
		}

		if c.GetHeader("X-API-Key") != cfg.APIKey {
			gm.sendErrorResponse(c, http.StatusUnauthorized, "invalid or missing API key")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (gm *GatewayManager) sendErrorResponse(c *gin.Context, statusCode int, detail any) {
	c.JSON(statusCode, gin.H{"detail": detail})
}
