// Package orchestrator is the request side of the datasheet pipeline: it
// validates a download request, snapshots the product and enqueues the
// render job that the worker turns into an emailed PDF.
package orchestrator

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"catalog/internal/models"
	"catalog/internal/pkg/errors"
	"catalog/internal/pkg/logger"
)

// AcceptedMessage is returned once the job is queued.
const AcceptedMessage = "Solicitação recebida. O PDF será enviado para o seu e-mail em instantes."

type RequestValidator interface {
	Request(ctx context.Context, req models.Requester, token, clientIP string) error
}

type ProductReader interface {
	GetByID(ctx context.Context, id int64) (*models.Product, error)
}

type ImageReader interface {
	GetPrimary(ctx context.Context, productID int64) (*models.ProductImage, error)
}

type JobEnqueuer interface {
	AddRenderJob(ctx context.Context, job models.RenderJob) (string, error)
}

type HistoryReader interface {
	List(ctx context.Context, f models.HistoryFilter) ([]models.DownloadHistoryRecord, error)
}

type Deps struct {
	Validator RequestValidator
	Products  ProductReader
	Images    ImageReader
	Queue     JobEnqueuer
	History   HistoryReader
	Log       *logger.Logger
	// Location is the time zone of the printed request time. Nil means UTC.
	Location *time.Location
}

type Service struct {
	validator RequestValidator
	products  ProductReader
	images    ImageReader
	queue     JobEnqueuer
	history   HistoryReader
	log       *logger.Logger
	loc       *time.Location
	now       func() time.Time
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		validator: d.Validator,
		products:  d.Products,
		images:    d.Images,
		queue:     d.Queue,
		history:   d.History,
		log:       log.WithComponent("orchestrator"),
		loc:       loc,
		now:       time.Now,
	}
}

// DownloadRequest is one datasheet request from the public form.
type DownloadRequest struct {
	ProductID      int64
	DownloadType   string
	Requester      models.Requester
	RecaptchaToken string
	ClientIP       string
}

type DownloadResponse struct {
	Message string `json:"message"`
	JobID   string `json:"jobId"`
}

// RequestDownload validates req, snapshots the product and enqueues a
// render job. Nothing is enqueued when any step fails.
func (s *Service) RequestDownload(ctx context.Context, req DownloadRequest) (DownloadResponse, error) {
	log := s.log.FromContext(ctx).WithProductID(req.ProductID)

	if req.DownloadType != models.DownloadTypePDF {
		return DownloadResponse{}, errors.ValidationField("download_type", "download_type must be pdf")
	}
	requester := trimRequester(req.Requester)
	if err := s.validator.Request(ctx, requester, req.RecaptchaToken, req.ClientIP); err != nil {
		log.Info("download request rejected", "code", string(errors.GetCode(err)))
		return DownloadResponse{}, err
	}

	var (
		product *models.Product
		image   *models.ProductImage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.products.GetByID(gctx, req.ProductID)
		product = p
		return err
	})
	g.Go(func() error {
		img, err := s.images.GetPrimary(gctx, req.ProductID)
		if errors.IsNotFound(err) {
			return nil
		}
		if err != nil {
			// Rendered without the picture.
			log.Warn("product image unavailable", "error", err.Error())
			return nil
		}
		image = img
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.IsNotFound(err) {
			return DownloadResponse{}, errors.NotFound("product", strconv.FormatInt(req.ProductID, 10))
		}
		return DownloadResponse{}, errors.Wrap(err, "orchestrator.RequestDownload", "load product")
	}

	job := models.RenderJob{
		DownloadType: models.DownloadType{DownloadType: models.DownloadTypePDF},
		Requester:    requester,
		Datasheet:    AssembleDatasheet(product, image, s.now().In(s.loc)),
	}
	if image != nil && job.Datasheet.ProductImage == "" {
		log.Warn("product image cannot be embedded, rendering without it", "content_type", image.ContentType)
	}
	jobID, err := s.queue.AddRenderJob(ctx, job)
	if err != nil {
		return DownloadResponse{}, errors.Wrap(err, "orchestrator.RequestDownload", "enqueue render job")
	}

	log.Info("render job enqueued", "job_id", jobID, "has_image", job.Datasheet.ProductImage != "")
	return DownloadResponse{Message: AcceptedMessage, JobID: jobID}, nil
}

// ListHistory returns download history newest first.
func (s *Service) ListHistory(ctx context.Context, f models.HistoryFilter) ([]models.DownloadHistoryRecord, error) {
	recs, err := s.history.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "orchestrator.ListHistory", "list download history")
	}
	return recs, nil
}

func trimRequester(r models.Requester) models.Requester {
	return models.Requester{
		Username:    strings.TrimSpace(r.Username),
		Company:     strings.TrimSpace(r.Company),
		PhoneNumber: strings.TrimSpace(r.PhoneNumber),
		Email:       strings.TrimSpace(r.Email),
	}
}
