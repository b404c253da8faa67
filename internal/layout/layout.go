// Package layout turns a product datasheet into a renderer independent
// block tree. Build is deterministic and performs no I/O beyond the
// injected AssetSource.
package layout

import (
	"fmt"
	"strings"

	"catalog/internal/models"
	"catalog/internal/pkg/errors"
)

const (
	LogoAsset = "logoAC.png"

	productImageAsset = "product_image"
)

// SegmentIcons maps segment tags to their icon file.
var SegmentIcons = map[string]string{
	"agricultura":        "plant.png",
	"tintas_e_resinas":   "color.png",
	"tratamento_de_agua": "dropPlusLess.png",
	"cuidados_em_casa":   "cleanHands.png",
}

// Contact is a footer entry before its icon is resolved.
type Contact struct {
	Icon string
	Text string
	Link string
}

// Params are the layout thresholds and company details.
type Params struct {
	// WideTableColumns is the column count from which the table moves to a
	// landscape page.
	WideTableColumns int
	Margin           float64
	CaptionFormat    string
	LeftContacts     []Contact
	RightContacts    []Contact
}

// DefaultParams returns the Ativa Chemical datasheet layout.
func DefaultParams() Params {
	return Params{
		WideTableColumns: 11,
		Margin:           20,
		CaptionFormat:    "documento gerado em: %s",
		LeftContacts: []Contact{
			{Icon: "local.png", Text: "Rua Funchal, 538, 2° andar, Itaim Bibi, São Paulo – SP, 04551-060"},
			{Icon: "whatsapp.png", Text: "11 9 1272-1893", Link: "https://api.whatsapp.com/send/?phone=5511912721893"},
			{Icon: "email.png", Text: "ativachemical@ativachemical.com", Link: "mailto:ativachemical@ativachemical.com"},
		},
		RightContacts: []Contact{
			{Icon: "internet.png", Text: "www.ativachemical.com", Link: "https://www.ativachemical.com"},
			{Icon: "linkedin.png", Text: "https://www.linkedin.com/company/ativa-chemical", Link: "https://www.linkedin.com/company/ativa-chemical"},
		},
	}
}

// Builder assembles documents from datasheets.
type Builder struct {
	assets AssetSource
	params Params
}

// NewBuilder creates a Builder. Zero thresholds fall back to DefaultParams.
func NewBuilder(assets AssetSource, params Params) *Builder {
	def := DefaultParams()
	if params.WideTableColumns <= 0 {
		params.WideTableColumns = def.WideTableColumns
	}
	if params.Margin <= 0 {
		params.Margin = def.Margin
	}
	if params.CaptionFormat == "" {
		params.CaptionFormat = def.CaptionFormat
	}
	return &Builder{assets: assets, params: params}
}

// Build lays out ds. The logo is required; a missing segment or contact
// icon only drops that entry. A malformed product image is a validation
// error since retrying cannot fix it.
func (b *Builder) Build(ds models.ProductDatasheet) (*Document, error) {
	logo, err := b.assets.Load(LogoAsset)
	if err != nil {
		return nil, errors.Render(err, "layout", "load logo")
	}

	left := []Block{}
	if ds.ProductImage != "" {
		img, err := DecodeDataURI(productImageAsset, ds.ProductImage)
		if err != nil {
			return nil, errors.ValidationField("product_image", err.Error())
		}
		left = append(left, Image{Asset: img, Width: 160, Align: AlignCenter}, Spacer{Height: 5})
	}
	if icons := b.segmentIcons(ds.Segments); len(icons) > 0 {
		left = append(left, IconRow{Icons: icons, Size: 17, Gap: 4})
	}

	right := make([]Block, 0, len(ds.TopicsFixed))
	for _, t := range ds.TopicsFixed {
		right = append(right, field(t))
	}

	body := []Block{
		Image{Asset: logo, Width: 200, Align: AlignLeft},
		Spacer{Height: 10},
		Text{Content: ds.ProductName, Size: 18, Bold: true, Align: AlignCenter},
		Spacer{Height: 10},
		Columns{Left: left, Right: right, LeftRatio: 0.4, Gap: 15},
		Spacer{Height: 20},
	}

	if len(ds.Topics) > 0 {
		for _, t := range ds.Topics {
			body = append(body, field(t))
		}
		body = append(body, Spacer{Height: 5})
	}

	body = append(body, tableBlocks(ClassifyTable(ds.Table, b.params.WideTableColumns), ds.Table, logo)...)

	return &Document{
		Title:  ds.ProductName,
		Margin: b.params.Margin,
		Body:   body,
		Footer: Footer{
			Left:         b.contacts(b.params.LeftContacts),
			Right:        b.contacts(b.params.RightContacts),
			IconSize:     12,
			TextSize:     10,
			TextColor:    Hex("#404d63"),
			LinkColor:    Hex("#4383f0"),
			Caption:      fmt.Sprintf(b.params.CaptionFormat, ds.DataRequest),
			CaptionSize:  9,
			CaptionColor: Hex("#bdbdbd"),
		},
	}, nil
}

func field(t models.Topic) Field {
	return Field{Label: t.Key + ":", Value: t.Value, LabelSize: 14, ValueSize: 12}
}

func (b *Builder) segmentIcons(segments []string) []InlineAsset {
	var icons []InlineAsset
	for _, s := range segments {
		name, ok := SegmentIcons[strings.ToLower(strings.TrimSpace(s))]
		if !ok {
			continue
		}
		icon, err := b.assets.Load(name)
		if err != nil {
			continue
		}
		icons = append(icons, icon)
	}
	return icons
}

func (b *Builder) contacts(list []Contact) []ContactItem {
	items := make([]ContactItem, 0, len(list))
	for _, c := range list {
		icon, err := b.assets.Load(c.Icon)
		if err != nil {
			continue
		}
		items = append(items, ContactItem{Icon: icon, Text: c.Text, Link: c.Link})
	}
	return items
}
