package models

// Topic is a label/value pair printed on the datasheet.
type Topic struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ProductDatasheet is the immutable snapshot a render job carries.
type ProductDatasheet struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	// ProductImage is a data URI, empty when the product has no image.
	ProductImage string     `json:"product_image"`
	Segments     []string   `json:"segments"`
	TopicsFixed  []Topic    `json:"topicsFixed"`
	Topics       []Topic    `json:"topics"`
	Table        [][]string `json:"table"`
	DataRequest  string     `json:"data_request"`
}

// Requester is the contact who asked for the datasheet.
type Requester struct {
	Username    string `json:"username"`
	Company     string `json:"company"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

const DownloadTypePDF = "pdf"

type DownloadType struct {
	DownloadType string `json:"download_type"`
}

// RenderJob is the queue payload.
type RenderJob struct {
	DownloadType DownloadType     `json:"downloadType"`
	Requester    Requester        `json:"informationDownloadProduct"`
	Datasheet    ProductDatasheet `json:"productDataForPdf"`
}
