package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"catalog/internal/export"
	"catalog/internal/httpkit"
	"catalog/internal/models"
	"catalog/internal/orchestrator"
	"catalog/internal/pkg/errors"
	"catalog/internal/pkg/middleware"
)

// DownloadRequestBody is the public form payload.
type DownloadRequestBody struct {
	Username          string `json:"username"`
	Company           string `json:"company"`
	PhoneNumber       string `json:"phone_number"`
	Email             string `json:"email"`
	RecaptchaToken    string `json:"recaptchaToken"`
	RecaptchaClientIP string `json:"recaptchaClientIp"`
}

// PostDownload handles POST /products/{productId}/download?download_type=pdf.
func (h *Handler) PostDownload(w http.ResponseWriter, r *http.Request) error {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || productID <= 0 {
		return errors.ValidationField("productId", "productId must be a positive integer")
	}

	var body DownloadRequestBody
	if err := httpkit.DecodeJSON(r, &body); err != nil {
		return errors.WrapWithCode(err, errors.CodeBadRequest, "handlers.PostDownload", "invalid json body")
	}

	clientIP := strings.TrimSpace(body.RecaptchaClientIP)
	if clientIP == "" {
		clientIP = middleware.ClientIP(r)
	}

	resp, err := h.downloads.RequestDownload(r.Context(), orchestrator.DownloadRequest{
		ProductID:    productID,
		DownloadType: r.URL.Query().Get("download_type"),
		Requester: models.Requester{
			Username:    body.Username,
			Company:     body.Company,
			PhoneNumber: body.PhoneNumber,
			Email:       body.Email,
		},
		RecaptchaToken: body.RecaptchaToken,
		ClientIP:       clientIP,
	})
	if err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusAccepted, resp)
	return nil
}

func historyFilter(r *http.Request) (models.HistoryFilter, error) {
	q := r.URL.Query()
	f := models.HistoryFilter{Search: strings.TrimSpace(q.Get("search"))}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return f, errors.ValidationField("limit", "limit must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}

// ListHistory handles GET /downloads/history.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) error {
	f, err := historyFilter(r)
	if err != nil {
		return err
	}
	recs, err := h.downloads.ListHistory(r.Context(), f)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []models.DownloadHistoryRecord{}
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"history": recs})
	return nil
}

// ExportHistory handles GET /downloads/history/export.
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) error {
	f, err := historyFilter(r)
	if err != nil {
		return err
	}
	recs, err := h.downloads.ListHistory(r.Context(), f)
	if err != nil {
		return err
	}
	data, err := export.HistoryXLSX(recs, h.loc)
	if err != nil {
		return err
	}
	httpkit.WriteAttachment(w,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"historico-downloads.xlsx",
		data,
	)
	return nil
}
