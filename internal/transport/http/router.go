package httptransport

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"photoscore-server/internal/platform/config"
	"photoscore-server/internal/platform/logging"
)

// RequestIDHeader carries the correlation id on both request and response.
const RequestIDHeader = "X-Request-Id"

const requestIDKey = "requestID"

// Options configures the HTTP router builder.
type Options struct {
	Config *config.Config
	Logger *logging.Logger
}

// Router bundles the gin engine and the API route group services register on.
type Router struct {
	Engine *gin.Engine
	API    *gin.RouterGroup
}

// Build constructs a gin engine pre-configured with recovery, logging, CORS,
// request-id propagation and optional static file serving.
func Build(opts Options) (*Router, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("http router requires config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}

	if opts.Config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())
	engine.Use(loggingMiddleware(logger))

	engine.SetTrustedProxies([]string{"0.0.0.0"})

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	if dir := opts.Config.Web.StaticDir; dir != "" {
		engine.Use(static.Serve("/", static.LocalFile(dir, true)))
	}

	return &Router{
		Engine: engine,
		API:    engine.Group("/api"),
	}, nil
}

// requestIDMiddleware adopts the caller's correlation id when present and
// mints one otherwise; the id is echoed on the response for log correlation.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// RequestID returns the correlation id assigned to this request.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// SetRequestID overrides the correlation id, e.g. when the request body
// carries its own id. The response header follows.
func SetRequestID(c *gin.Context, id string) {
	c.Set(requestIDKey, id)
	c.Writer.Header().Set(RequestIDHeader, id)
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		logger.InfoTag("HTTP", "%s %s -> %d (%s) request=%s",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			duration,
			RequestID(c),
		)
	}
}
