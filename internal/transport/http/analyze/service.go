package analyze

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"photoscore-server/internal/app/sidecar"
	"photoscore-server/internal/core/providers/vision"
	"photoscore-server/internal/domain/critique"
	domainimage "photoscore-server/internal/domain/image"
	"photoscore-server/internal/platform/config"
	"photoscore-server/internal/platform/errors"
	"photoscore-server/internal/platform/logging"
	httptransport "photoscore-server/internal/transport/http"
)

// Service is the HTTP face of the critique pipeline: it validates uploads,
// drives the model call, normalises the reply and hands finished analyses to
// the sidecar.
type Service struct {
	config    *config.Config
	logger    *logging.Logger
	provider  *vision.Provider
	publisher *sidecar.Publisher
	images    *domainimage.Pipeline
}

func NewService(
	cfg *config.Config,
	logger *logging.Logger,
	provider *vision.Provider,
	publisher *sidecar.Publisher,
) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.KindConfig, "analyze.new", "config is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "analyze.new", "logger is required")
	}
	if provider == nil {
		return nil, errors.New(errors.KindConfig, "analyze.new", "model provider is required")
	}
	if publisher == nil {
		return nil, errors.New(errors.KindConfig, "analyze.new", "sidecar publisher is required")
	}

	images, err := domainimage.NewPipeline(domainimage.Options{
		MaxFileSize: cfg.Image.MaxFileSize,
		Logger:      logger,
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindConfig, "analyze.new", "initialise image pipeline", err)
	}

	return &Service{
		config:    cfg,
		logger:    logger,
		provider:  provider,
		publisher: publisher,
		images:    images,
	}, nil
}

// Register mounts the analysis routes on the API group.
func (s *Service) Register(router *gin.RouterGroup) {
	router.GET("/analyze", s.handleGet)
	router.POST("/analyze", s.handlePost)
	router.POST("/log-to-sheet", s.handleIngest)
	s.logger.InfoTag("HTTP", "analyze routes registered")
}

// handleGet reports service status without touching the upstream model.
func (s *Service) handleGet(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"model":    s.config.Model.ModelName,
		"fallback": s.config.Model.FallbackModel,
		"sidecar":  s.config.Sidecar.Enabled(),
	})
}

func (s *Service) handlePost(c *gin.Context) {
	var body analyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if body.RequestID != "" {
		httptransport.SetRequestID(c, body.RequestID)
	}
	requestID := httptransport.RequestID(c)

	if s.config.Model.APIKey == "" {
		s.logger.ErrorTag("MODEL", "analysis rejected, API key not configured: request=%s", requestID)
		httptransport.RespondError(c, http.StatusInternalServerError, "Missing GEMINI_API_KEY")
		return
	}

	// Raw relay mode: caller supplies its own prompt and image, no pipeline.
	if body.Mode == "" && body.Prompt != "" && body.ImageBase64 != "" {
		s.handleRelay(c, &body)
		return
	}

	if body.Mode != "full" {
		httptransport.RespondError(c, http.StatusBadRequest,
			"Invalid request: expected mode 'full' or {prompt,imageBase64}")
		return
	}
	if body.ImageBase64 == "" || body.RequestID == "" || body.Name == "" || body.Contact == "" {
		httptransport.RespondError(c, http.StatusBadRequest,
			"Missing required fields (imageBase64, requestId, name, contact)")
		return
	}

	output, err := s.images.Process(body.ImageBase64)
	if err != nil {
		s.logger.WarnTag("IMAGE", "upload rejected: request=%s err=%v", requestID, err)
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid image payload")
		return
	}

	prompt := critique.BuildPrompt(body.Diagnostics)
	outcome, err := s.provider.Invoke(c.Request.Context(), prompt, output.Base64, "image/"+output.Format)
	if err != nil {
		s.logger.ErrorTag("MODEL", "model call failed: request=%s err=%v", requestID, err)
		httptransport.RespondError(c, http.StatusBadGateway, "Model call failed")
		return
	}
	if !outcome.Succeeded() {
		// Upstream rejected the call after any fallback attempt; hand its
		// status and body to the client untouched.
		c.Data(outcome.StatusCode, "application/json", outcome.Body)
		return
	}

	result, err := critique.Extract(outcome)
	if err != nil {
		s.logger.ErrorTag("MODEL", "unreadable model reply: request=%s err=%v", requestID, err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Model returned an unreadable response",
			"raw":   string(outcome.Body),
		})
		return
	}

	s.publish(c, &body, requestID, output, result)
	httptransport.RespondResult(c, http.StatusOK, result)
}

// handleRelay forwards a caller-built prompt to the primary model with no
// fallback and no result normalisation.
func (s *Service) handleRelay(c *gin.Context, body *analyzeRequest) {
	encoded := domainimage.StripDataURL(body.ImageBase64)
	outcome, err := s.provider.InvokeModel(
		c.Request.Context(), s.config.Model.ModelName, body.Prompt, encoded, "")
	if err != nil {
		s.logger.ErrorTag("MODEL", "relay call failed: request=%s err=%v",
			httptransport.RequestID(c), err)
		httptransport.RespondError(c, http.StatusBadGateway, "Model call failed")
		return
	}
	c.Data(outcome.StatusCode, "application/json", outcome.Body)
}

func (s *Service) publish(
	c *gin.Context,
	body *analyzeRequest,
	requestID string,
	output *domainimage.Output,
	result *critique.AnalysisResult,
) {
	req := &critique.AnalysisRequest{
		RequestID:          requestID,
		ImageBytes:         output.Bytes,
		ImageBase64:        output.Base64,
		DiagnosticsEnabled: body.Diagnostics,
		Name:               body.Name,
		Contact:            body.Contact,
		Timestamp:          body.Timestamp,
		Consent:            body.Consent,
		ClientID:           body.ClientID,
		VisitorID:          body.VisitorID,
		IP:                 firstNonEmpty(body.IP, c.ClientIP()),
		UserAgent:          firstNonEmpty(body.UA, c.Request.UserAgent()),
		Lang:               firstNonEmpty(body.Lang, c.GetHeader("Accept-Language")),
		Referrer:           firstNonEmpty(body.Referrer, c.GetHeader("Referer")),
	}
	s.publisher.Publish(s.publisher.BuildRecord(req, result))
}

// handleIngest forwards a caller-built record to the webhook synchronously.
func (s *Service) handleIngest(c *gin.Context) {
	var body ingestRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if body.RequestID != "" {
		httptransport.SetRequestID(c, body.RequestID)
	}

	if !s.config.Sidecar.Enabled() {
		c.JSON(http.StatusOK, gin.H{"ok": false, "reason": "APPS_SCRIPT_URL not set"})
		return
	}

	record := sidecar.Record{
		Action:    firstNonEmpty(body.Action, "complete"),
		RequestID: body.RequestID,
		Name:      body.Name,
		Contact:   body.Contact,
		Timestamp: body.Timestamp,
		Image:     firstNonEmpty(body.Image, body.ImageBase64),
		Consent:   normaliseConsent(body.Consent),
		ClientID:  body.ClientID,
		VisitorID: body.VisitorID,
		IP:        firstNonEmpty(body.IP, c.ClientIP()),
		UserAgent: firstNonEmpty(body.UA, c.Request.UserAgent()),
		Lang:      firstNonEmpty(body.Lang, c.GetHeader("Accept-Language")),
		Referrer:  firstNonEmpty(body.Referrer, c.GetHeader("Referer")),
	}

	// Delivery failure is a sidecar concern, not the caller's: log it and
	// answer ok so the front end never blocks on the sheet.
	if err := s.publisher.Deliver(context.WithoutCancel(c.Request.Context()), record); err != nil {
		s.logger.WarnTag("SIDECAR", "ingest delivery failed: request=%s err=%v", record.RequestID, err)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// normaliseConsent coerces whatever shape the client sent into "Y"/"N".
func normaliseConsent(value interface{}) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "Y"
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "y", "yes", "true", "1":
			return "Y"
		}
	case float64:
		if v != 0 {
			return "Y"
		}
	}
	return "N"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
