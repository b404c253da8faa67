package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"catalog/internal/layout"
	"catalog/internal/models"
	"catalog/internal/pkg/errors"
	"catalog/internal/pkg/logger"
	"catalog/internal/render"
	"catalog/internal/worker/queue"
)

type stubLayout struct{ err error }

func (s stubLayout) Build(ds models.ProductDatasheet) (*layout.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &layout.Document{Title: ds.ProductName}, nil
}

// fileRenderer writes real files so cleanup can be observed.
type fileRenderer struct {
	dir       string
	failAfter int // stage after which to fail, 0 never
	written   []string
}

func (f *fileRenderer) Run(_ context.Context, _ *layout.Document, base string, arts *render.Artifacts) (render.Output, error) {
	stages := []string{
		filepath.Join(f.dir, "pdf", base+".pdf"),
		filepath.Join(f.dir, "pages", base+"-1.png"),
		filepath.Join(f.dir, "pages", base+"-2.png"),
		filepath.Join(f.dir, "flattened", base+".pdf"),
	}
	for i, p := range stages {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return render.Output{}, err
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			return render.Output{}, err
		}
		arts.Add(p)
		f.written = append(f.written, p)
		if f.failAfter > 0 && i+1 == f.failAfter {
			return render.Output{}, errors.Render(fmt.Errorf("exit status 1"), "rasterize", "pdftoppm failed")
		}
	}
	return render.Output{Original: stages[0], Pages: stages[1:3], Flattened: stages[3]}, nil
}

type stubMailer struct {
	datasheetErr error
	alertErr     error
	sentTo       []string
	attached     string
	alerts       int
}

func (m *stubMailer) SendDatasheet(_ context.Context, req models.Requester, _ models.ProductDatasheet, pdfPath string) error {
	if m.datasheetErr != nil {
		return m.datasheetErr
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return fmt.Errorf("attachment missing at send time: %w", err)
	}
	m.sentTo = append(m.sentTo, req.Email)
	m.attached = pdfPath
	return nil
}

func (m *stubMailer) SendAlert(context.Context, models.Requester, models.ProductDatasheet) error {
	m.alerts++
	return m.alertErr
}

type memHistory struct {
	records []models.DownloadHistoryRecord
	err     error
}

func (h *memHistory) Insert(_ context.Context, rec *models.DownloadHistoryRecord) error {
	if h.err != nil {
		return h.err
	}
	h.records = append(h.records, *rec)
	return nil
}

func renderJob(t *testing.T) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(models.RenderJob{
		DownloadType: models.DownloadType{DownloadType: "pdf"},
		Requester:    models.Requester{Username: "Lucas Santos", Company: "Ativa Chemical", PhoneNumber: "11999999999", Email: "lucas@example.com"},
		Datasheet: models.ProductDatasheet{
			ProductID:   42,
			ProductName: "Ativa Fos 30",
			Segments:    []string{"agricultura", "tintas_e_resinas"},
			TopicsFixed: []models.Topic{{Key: "Nome Comercial", Value: "Ativa Fos 30"}},
			Topics:      []models.Topic{{Key: "pH", Value: "7"}, {Key: "Densidade", Value: "1,2"}},
			Table:       [][]string{{"a", "b", "c", "d"}, {"1", "2", "3", "4"}, {"5", "6", "7", "8"}, {"9", "10", "11", "12"}},
			DataRequest: "17/10/2026 10:00:00",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &queue.Job{ID: "3f2a9c1e-0000-4000-8000-000000000000", Payload: payload}
}

func remaining(t *testing.T, paths []string) []string {
	t.Helper()
	var left []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			left = append(left, p)
		}
	}
	return left
}

func TestProcessJob(t *testing.T) {
	tests := []struct {
		name        string
		layoutErr   error
		failAfter   int
		mailErr     error
		alertErr    error
		historyErr  error
		wantOutcome Outcome
		wantCode    errors.Code
		wantHistory string
	}{
		{name: "delivered", wantOutcome: OutcomeDelivered, wantHistory: models.HistoryDelivered},
		{name: "alert failure is logged only", alertErr: fmt.Errorf("smtp down"), wantOutcome: OutcomeDelivered, wantHistory: models.HistoryDelivered},
		{name: "history failure is logged only", historyErr: fmt.Errorf("db down"), wantOutcome: OutcomeDelivered},
		{name: "delivery failure", mailErr: errors.Delivery(fmt.Errorf("535"), "delivery.send"), wantOutcome: OutcomeDeliveryFailed, wantCode: errors.CodeDelivery, wantHistory: models.HistoryDeliveryFailed},
		{name: "render failure mid rasterize", failAfter: 2, wantOutcome: OutcomeRenderFailed, wantCode: errors.CodeRender},
		{name: "layout rejects image", layoutErr: errors.ValidationField("product_image", "not a data uri"), wantOutcome: OutcomeRenderFailed, wantCode: errors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rend := &fileRenderer{dir: t.TempDir(), failAfter: tt.failAfter}
			mailer := &stubMailer{datasheetErr: tt.mailErr, alertErr: tt.alertErr}
			hist := &memHistory{err: tt.historyErr}
			p := New(Deps{Layout: stubLayout{err: tt.layoutErr}, Renderer: rend, Mailer: mailer, History: hist, Log: logger.Discard()})
			p.now = func() time.Time { return time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC) }

			outcome, err := p.ProcessJob(context.Background(), renderJob(t))

			if outcome != tt.wantOutcome {
				t.Errorf("outcome = %s, want %s", outcome, tt.wantOutcome)
			}
			if tt.wantCode == "" && err != nil {
				t.Errorf("unexpected error %v", err)
			}
			if tt.wantCode != "" && !errors.IsCode(err, tt.wantCode) {
				t.Errorf("expected %s, got %v", tt.wantCode, err)
			}

			if left := remaining(t, rend.written); len(left) != 0 {
				t.Errorf("artifacts left behind: %v", left)
			}

			switch {
			case tt.wantHistory == "" && len(hist.records) != 0:
				t.Errorf("expected no history, got %+v", hist.records)
			case tt.wantHistory != "":
				if len(hist.records) != 1 {
					t.Fatalf("expected one history record, got %d", len(hist.records))
				}
				rec := hist.records[0]
				if rec.ProductID != 42 || rec.Status != tt.wantHistory || rec.Email != "lucas@example.com" || rec.JobID == "" {
					t.Errorf("unexpected history %+v", rec)
				}
			}

			if tt.wantOutcome == OutcomeRenderFailed && (len(mailer.sentTo) != 0 || mailer.alerts != 0) {
				t.Error("no email may be sent when rendering fails")
			}
		})
	}
}

func TestProcessJobAttachesFlattenedPDF(t *testing.T) {
	rend := &fileRenderer{dir: t.TempDir()}
	mailer := &stubMailer{}
	p := New(Deps{Layout: stubLayout{}, Renderer: rend, Mailer: mailer, History: &memHistory{}, Log: logger.Discard()})

	if _, err := p.ProcessJob(context.Background(), renderJob(t)); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if filepath.Base(filepath.Dir(mailer.attached)) != "flattened" {
		t.Errorf("attached %s, want the flattened pdf", mailer.attached)
	}
}

func TestProcessJobRejectsBadPayload(t *testing.T) {
	p := New(Deps{Layout: stubLayout{}, Renderer: &fileRenderer{dir: t.TempDir()}, Mailer: &stubMailer{}, History: &memHistory{}, Log: logger.Discard()})

	for _, payload := range []string{``, `{}`, `not json`, `{"downloadType":{"download_type":"docx"}}`} {
		outcome, err := p.ProcessJob(context.Background(), &queue.Job{ID: "j", Payload: []byte(payload)})
		if outcome != OutcomeRenderFailed || !errors.IsPermanent(err) {
			t.Errorf("payload %q: outcome %s err %v; want permanent failure", payload, outcome, err)
		}
	}
}

func TestBaseName(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 0, 0, 123e6, time.FixedZone("BRT", -3*3600))
	got := BaseName(now, 42, "3f2a9c1e-0000-4000-8000-000000000000")
	if got != "product_20261017T130000123Z_42_3f2a9c1e" {
		t.Errorf("BaseName() = %s", got)
	}
	if got := BaseName(now, 42, "../x"); got != "product_20261017T130000123Z_42__x" {
		t.Errorf("BaseName() with hostile id = %s", got)
	}
}

func TestCleanupIgnoresMissingFiles(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "a.pdf")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	n := NewCleanup(logger.Discard()).Remove(context.Background(), []string{present, filepath.Join(dir, "gone.pdf")})
	if n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
	if _, err := os.Stat(present); !os.IsNotExist(err) {
		t.Error("expected file removed")
	}
}
