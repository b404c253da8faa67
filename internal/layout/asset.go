package layout

import (
	"encoding/base64"
	"fmt"
	"path"
	"strings"
)

// InlineAsset is an image ready to be embedded in a document.
type InlineAsset struct {
	// Name identifies the image inside one document, e.g. "logoAC.png".
	Name string
	// Type is the image format understood by the PDF writer: PNG, JPG or GIF.
	Type string
	Data []byte
}

// DataURI returns the asset base64 encoded as a data URI.
func (a InlineAsset) DataURI() string {
	return "data:image/" + strings.ToLower(a.Type) + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// AssetSource resolves static images (logo, segment and contact icons) by
// file name. Implementations must be deterministic for a given name.
type AssetSource interface {
	Load(name string) (InlineAsset, error)
}

// ImageType maps a file extension or MIME subtype to a writer image type.
func ImageType(nameOrSubtype string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(nameOrSubtype), "."))
	if ext == "" {
		ext = strings.ToLower(nameOrSubtype)
	}
	switch ext {
	case "png":
		return "PNG", nil
	case "jpg", "jpeg":
		return "JPG", nil
	case "gif":
		return "GIF", nil
	default:
		return "", fmt.Errorf("unsupported image type %q", nameOrSubtype)
	}
}

// DecodeDataURI parses "data:image/<type>;base64,<payload>".
func DecodeDataURI(name, uri string) (InlineAsset, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return InlineAsset{}, fmt.Errorf("not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return InlineAsset{}, fmt.Errorf("data uri without payload")
	}
	mediaType, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return InlineAsset{}, fmt.Errorf("data uri must be base64 encoded")
	}
	sub, ok := strings.CutPrefix(mediaType, "image/")
	if !ok {
		return InlineAsset{}, fmt.Errorf("data uri media type %q is not an image", mediaType)
	}
	typ, err := ImageType(sub)
	if err != nil {
		return InlineAsset{}, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return InlineAsset{}, fmt.Errorf("decode data uri: %w", err)
	}
	return InlineAsset{Name: name, Type: typ, Data: data}, nil
}
