package processor

import (
	"context"
	"time"

	"catalog/internal/models"
	"catalog/internal/pkg/errors"
	"catalog/internal/pkg/logger"
	"catalog/internal/render"
	"catalog/internal/worker/queue"
)

// Mailer sends the two datasheet emails.
type Mailer interface {
	SendDatasheet(ctx context.Context, req models.Requester, ds models.ProductDatasheet, pdfPath string) error
	SendAlert(ctx context.Context, req models.Requester, ds models.ProductDatasheet) error
}

// HistoryWriter appends download history.
type HistoryWriter interface {
	Insert(ctx context.Context, rec *models.DownloadHistoryRecord) error
}

type Deps struct {
	Layout   Layouter
	Renderer Renderer
	Mailer   Mailer
	History  HistoryWriter
	Log      *logger.Logger
}

type Processor struct {
	mailer  Mailer
	history HistoryWriter
	log     *logger.Logger
	now     func() time.Time

	jobParser       *JobParser
	rendererAdapter *RendererAdapter
	cleanup         *Cleanup
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("processor")

	return &Processor{
		mailer:          d.Mailer,
		history:         d.History,
		log:             log,
		now:             time.Now,
		jobParser:       NewJobParser(),
		rendererAdapter: NewRendererAdapter(d.Layout, d.Renderer),
		cleanup:         NewCleanup(log),
	}
}

// ProcessJob renders the datasheet of job, emails it, notifies the sales
// team and records history. Artifacts are removed whatever the outcome.
//
// A non-nil error comes with OutcomeRenderFailed or OutcomeDeliveryFailed.
// Alert and history failures are logged only.
func (p *Processor) ProcessJob(ctx context.Context, job *queue.Job) (Outcome, error) {
	log := p.log.FromContext(ctx).WithJobID(job.ID)

	// 1. Decode the payload
	rj, err := p.jobParser.Parse(job.Payload)
	if err != nil {
		return OutcomeRenderFailed, err
	}
	ds, req := rj.Datasheet, rj.Requester
	log = log.WithProductID(ds.ProductID)

	arts := render.NewArtifacts()
	defer func() {
		p.cleanup.Remove(ctx, arts.Paths())
	}()

	// 2. Render
	start := time.Now()
	pdfPath, err := p.rendererAdapter.Render(ctx, RenderRequest{
		JobID:     job.ID,
		Datasheet: ds,
		BaseName:  BaseName(p.now(), ds.ProductID, job.ID),
		Artifacts: arts,
	})
	if err != nil {
		return OutcomeRenderFailed, err
	}
	log.Debug("render completed", "duration_ms", time.Since(start).Milliseconds())

	// 3. Deliver
	outcome := OutcomeDelivered
	deliveryErr := p.mailer.SendDatasheet(ctx, req, ds, pdfPath)
	if deliveryErr != nil {
		outcome = OutcomeDeliveryFailed
		deliveryErr = errors.WrapWithCode(deliveryErr, errors.CodeDelivery, "processor.deliver", "datasheet email failed")
		log.Error("datasheet email failed", "error", deliveryErr.Error(), "to", req.Email)
	}

	if err := p.mailer.SendAlert(ctx, req, ds); err != nil {
		log.Warn("download alert failed", "error", err.Error())
	}

	// 4. Record history
	status := models.HistoryDelivered
	if outcome == OutcomeDeliveryFailed {
		status = models.HistoryDeliveryFailed
	}
	rec := &models.DownloadHistoryRecord{
		Name:        req.Username,
		Email:       req.Email,
		Company:     req.Company,
		PhoneNumber: req.PhoneNumber,
		ProductName: ds.ProductName,
		ProductID:   ds.ProductID,
		Status:      status,
		JobID:       job.ID,
	}
	if err := p.history.Insert(ctx, rec); err != nil {
		log.Error("failed to record download history", "error", err.Error(), "status", status)
	}

	return outcome, deliveryErr
}
