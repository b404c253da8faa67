// Package delivery sends the datasheet to the requester and the download
// alert to the sales team.
package delivery

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"catalog/internal/models"
	"catalog/internal/pkg/errors"
	"catalog/internal/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	logoCID       = "logo"
	site          = "https://www.ativachemical.com"
	whatsAppPhone = "5511975840851"
)

// Theme holds the email colors.
type Theme struct {
	Primary    string
	Background string
	Box        string
	Footer     string
}

var defaultTheme = Theme{
	Primary:    "#1e83cc",
	Background: "#f3f2f0",
	Box:        "#ffffff",
	Footer:     "#9e9e9e",
}

// Config configures the Service.
type Config struct {
	From     string
	AlertTo  []string
	LogoPath string
}

// Service composes and sends the two datasheet emails.
type Service struct {
	transport Transport
	cfg       Config
	log       *logger.Logger
	now       func() time.Time
}

func NewService(transport Transport, cfg Config, log *logger.Logger) *Service {
	return &Service{transport: transport, cfg: cfg, log: log.WithComponent("delivery"), now: time.Now}
}

type datasheetView struct {
	Subject     string
	ProductName string
	Name        string
	WhatsApp    string
	Site        string
	LogoCID     string
	Year        int
	Theme       Theme
}

// SendDatasheet mails pdfPath to the requester as "<product name>.pdf".
func (s *Service) SendDatasheet(ctx context.Context, req models.Requester, ds models.ProductDatasheet, pdfPath string) error {
	subject := fmt.Sprintf("%s | Ativa Chemical", ds.ProductName)
	body, err := render("datasheet.html", datasheetView{
		Subject:     subject,
		ProductName: ds.ProductName,
		Name:        req.Username,
		WhatsApp:    WhatsAppLink(whatsAppPhone, fmt.Sprintf("Olá, sou o %s, poderia me ajudar?", req.Username)),
		Site:        site,
		LogoCID:     logoCID,
		Year:        s.now().Year(),
		Theme:       defaultTheme,
	})
	if err != nil {
		return err
	}

	msg := Message{
		From:    s.cfg.From,
		To:      []string{req.Email},
		Subject: subject,
		HTML:    body,
		Attachments: []Attachment{
			{Path: pdfPath, Name: AttachmentName(ds.ProductName)},
		},
	}
	if s.cfg.LogoPath != "" {
		msg.Attachments = append(msg.Attachments, Attachment{Path: s.cfg.LogoPath, Name: "logoAC.png", ContentID: logoCID})
	}

	if err := s.transport.Send(ctx, msg); err != nil {
		return errors.Wrap(err, "delivery.SendDatasheet", "send datasheet").WithField("to", req.Email)
	}
	s.log.FromContext(ctx).Info("datasheet sent", "to", req.Email, "product_id", ds.ProductID)
	return nil
}

type alertView struct {
	Subject     string
	UserName    string
	Company     string
	PhoneNumber string
	Email       string
	ProductName string
	ProductID   int64
	DataRequest string
	Theme       Theme
}

// SendAlert tells the sales team who downloaded which datasheet.
func (s *Service) SendAlert(ctx context.Context, req models.Requester, ds models.ProductDatasheet) error {
	if len(s.cfg.AlertTo) == 0 {
		return nil
	}
	subject := fmt.Sprintf("Download de ficha técnica: %s", ds.ProductName)
	body, err := render("alert.html", alertView{
		Subject:     subject,
		UserName:    req.Username,
		Company:     req.Company,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		ProductName: ds.ProductName,
		ProductID:   ds.ProductID,
		DataRequest: ds.DataRequest,
		Theme:       defaultTheme,
	})
	if err != nil {
		return err
	}

	if err := s.transport.Send(ctx, Message{From: s.cfg.From, To: s.cfg.AlertTo, Subject: subject, HTML: body}); err != nil {
		return errors.Wrap(err, "delivery.SendAlert", "send download alert")
	}
	return nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Wrap(err, "delivery.render", "execute "+name)
	}
	return buf.String(), nil
}

// WhatsAppLink builds a click-to-chat URL with a prefilled message.
func WhatsAppLink(phone, text string) string {
	return "https://api.whatsapp.com/send/?phone=" + phone + "&text=" + url.QueryEscape(text)
}

// AttachmentName is the file name the requester sees.
func AttachmentName(productName string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, strings.TrimSpace(productName))
	if name == "" {
		name = "produto"
	}
	return name + ".pdf"
}
