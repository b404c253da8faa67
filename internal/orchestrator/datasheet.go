package orchestrator

import (
	"encoding/base64"
	"mime"
	"net/http"
	"strings"
	"time"

	"catalog/internal/layout"
	"catalog/internal/models"
	"catalog/internal/render"
)

// RequestTimeFormat is how the request time is printed on the datasheet.
const RequestTimeFormat = "02/01/2006 15:04:05"

// Fixed topic labels, printed in this order in the right column.
const (
	TopicComercialName = "Nome Comercial"
	TopicChemicalName  = "Nome Químico"
	TopicFunction      = "Função"
	TopicApplication   = "Aplicação"
)

// AssembleDatasheet snapshots p and its primary image for a render job.
// img may be nil. An image that does not decode, or that the PDF writer
// cannot embed, is left out.
func AssembleDatasheet(p *models.Product, img *models.ProductImage, requestedAt time.Time) models.ProductDatasheet {
	ds := models.ProductDatasheet{
		ProductID:   p.ID,
		ProductName: p.ComercialName,
		Segments:    append([]string{}, p.Segments...),
		TopicsFixed: []models.Topic{
			{Key: TopicComercialName, Value: p.ComercialName},
			{Key: TopicChemicalName, Value: p.ChemicalName},
			{Key: TopicFunction, Value: p.Function},
			{Key: TopicApplication, Value: p.Application},
		},
		Topics:      append([]models.Topic{}, p.Topics...),
		Table:       ParseTable(p.SpecificationTable),
		DataRequest: requestedAt.Format(RequestTimeFormat),
	}
	if img != nil {
		ds.ProductImage = imageDataURI(img)
	}
	return ds
}

// ParseTable splits a tab separated table, one row per line. Blank rows
// are dropped; cells are trimmed.
func ParseTable(tsv string) [][]string {
	var table [][]string
	for _, line := range strings.Split(strings.ReplaceAll(tsv, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, "\t")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		table = append(table, cells)
	}
	return table
}

func imageDataURI(img *models.ProductImage) string {
	if len(img.Data) == 0 {
		return ""
	}
	ct := img.ContentType
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	if !strings.HasPrefix(ct, "image/") {
		ct = http.DetectContentType(img.Data)
	}
	typ, err := layout.ImageType(strings.TrimPrefix(ct, "image/"))
	if err != nil {
		return ""
	}
	if render.CheckImage(typ, img.Data) != nil {
		return ""
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
