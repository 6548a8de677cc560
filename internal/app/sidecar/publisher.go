package sidecar

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"photoscore-server/internal/domain/critique"
	domainimage "photoscore-server/internal/domain/image"
	"photoscore-server/internal/platform/config"
	"photoscore-server/internal/platform/errors"
	"photoscore-server/internal/platform/logging"
	"photoscore-server/internal/util"
)

// Record is one row of the webhook payload. Field names match what the
// receiving sheet script expects; consent is coerced to "Y"/"N" strings.
type Record struct {
	Action    string `json:"action"`
	RequestID string `json:"requestId,omitempty"`
	Name      string `json:"name,omitempty"`
	Contact   string `json:"contact,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Image     string `json:"image,omitempty"`
	Consent   string `json:"consent,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
	VisitorID string `json:"visitorId,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"ua,omitempty"`
	Lang      string `json:"lang,omitempty"`
	Referrer  string `json:"referrer,omitempty"`

	FigureScore     *int `json:"figureScore,omitempty"`
	BackgroundScore *int `json:"backgroundScore,omitempty"`
	VibeScore       *int `json:"vibeScore,omitempty"`

	FigureCritique     string `json:"figureCritique,omitempty"`
	BackgroundCritique string `json:"backgroundCritique,omitempty"`
	VibeCritique       string `json:"vibeCritique,omitempty"`
	FinalCritique      string `json:"finalCritique,omitempty"`
}

// Publisher delivers records to the configured webhook off the request path.
// Publishing never blocks and never fails the caller: a full queue drops the
// record with a warning, and delivery errors are logged only.
type Publisher struct {
	config *config.SidecarConfig
	logger *logging.Logger

	httpClient *http.Client
	queue      *util.Queue[Record]
	wg         sync.WaitGroup
}

func NewPublisher(cfg *config.SidecarConfig, logger *logging.Logger) *Publisher {
	return &Publisher{
		config:     cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		queue:      util.NewQueue[Record](cfg.QueueSize),
	}
}

// Start launches the delivery workers. A disabled sidecar starts nothing.
// Workers outlive the caller's context cancellation so that records queued
// before shutdown still go out; they terminate when Stop closes the queue.
func (p *Publisher) Start(ctx context.Context) {
	if !p.config.Enabled() {
		p.logger.InfoTag("SIDECAR", "webhook URL not set, sidecar disabled")
		return
	}

	workerCtx := context.WithoutCancel(ctx)
	workers := p.config.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(workerCtx)
	}
	p.logger.InfoTag("SIDECAR", "started %d delivery workers, image policy %q",
		workers, p.config.ImagePolicy)
}

// Stop closes the queue and waits until queued records are delivered.
func (p *Publisher) Stop() {
	p.queue.Close()
	p.wg.Wait()
}

func (p *Publisher) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		record, err := p.queue.Pop(ctx)
		if err != nil {
			return
		}
		if err := p.Deliver(ctx, record); err != nil {
			p.logger.WarnTag("SIDECAR", "record delivery failed: request=%s err=%v",
				record.RequestID, err)
		}
	}
}

// BuildRecord assembles a webhook row from a finished analysis. The attached
// image follows the configured policy; a thumbnail that cannot be produced
// degrades to no image rather than failing the record.
func (p *Publisher) BuildRecord(req *critique.AnalysisRequest, result *critique.AnalysisResult) Record {
	record := Record{
		Action:    "complete",
		RequestID: req.RequestID,
		Name:      req.Name,
		Contact:   req.Contact,
		Timestamp: req.Timestamp,
		Consent:   consentFlag(req.Consent),
		ClientID:  req.ClientID,
		VisitorID: req.VisitorID,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Lang:      req.Lang,
		Referrer:  req.Referrer,
	}
	if record.Timestamp == "" {
		record.Timestamp = seoulTimestamp(time.Now())
	}

	switch p.config.ImagePolicy {
	case config.SidecarImageFull:
		record.Image = req.ImageBase64
	case config.SidecarImageThumbnail:
		thumb, err := domainimage.Thumbnail(req.ImageBytes, p.config.ThumbnailMaxEdge)
		if err != nil {
			p.logger.WarnTag("SIDECAR", "thumbnail failed for request=%s, omitting image: %v",
				req.RequestID, err)
			break
		}
		record.Image = base64.StdEncoding.EncodeToString(thumb)
	}

	if result != nil && result.IsValid {
		record.FigureScore = result.FigureScore
		record.BackgroundScore = result.BackgroundScore
		record.VibeScore = result.VibeScore
		record.FigureCritique = result.FigureCritique
		record.BackgroundCritique = result.BackgroundCritique
		record.VibeCritique = result.VibeCritique
		record.FinalCritique = result.FinalCritique
	}
	return record
}

// Publish enqueues a record for asynchronous delivery. It never returns an
// error to the caller; failures end in the log and nowhere else.
func (p *Publisher) Publish(record Record) {
	if !p.config.Enabled() {
		return
	}
	if err := p.queue.Push(record); err != nil {
		p.logger.WarnTag("SIDECAR", "record dropped: request=%s reason=%v", record.RequestID, err)
	}
}

// Deliver posts one record to the webhook synchronously. Used by the workers
// and by the standalone ingestion endpoint, which wants the outcome.
func (p *Publisher) Deliver(ctx context.Context, record Record) error {
	if !p.config.Enabled() {
		return errors.New(errors.KindSidecar, "sidecar.deliver", "webhook URL not set")
	}

	body, err := sonic.Marshal(record)
	if err != nil {
		return errors.Wrap(errors.KindSidecar, "sidecar.deliver", "marshal record", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(errors.KindSidecar, "sidecar.deliver", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.KindSidecar, "sidecar.deliver", "post record", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.New(errors.KindSidecar, "sidecar.deliver",
			"webhook returned status "+resp.Status)
	}
	p.logger.DebugTag("SIDECAR", "record delivered: request=%s", record.RequestID)
	return nil
}

// consentFlag coerces the boolean consent into the "Y"/"N" convention the
// sheet uses.
func consentFlag(consent bool) string {
	if consent {
		return "Y"
	}
	return "N"
}

var seoul = mustLoadSeoul()

func mustLoadSeoul() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

func seoulTimestamp(t time.Time) string {
	return t.In(seoul).Format("2006-01-02 15:04:05")
}
