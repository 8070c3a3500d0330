package invo

// TaxLine is one VAT breakdown line of an invoice.
type TaxLine struct {
	TaxRate    float64 `json:"taxRate"`
	BaseAmount float64 `json:"baseAmount"`
	TaxAmount  float64 `json:"taxAmount"`
}

// Party identifies an invoice counterparty.
type Party struct {
	Name  string `json:"name,omitempty"`
	TaxID string `json:"taxId,omitempty"`
}

// Invoice is the payload accepted by the invoice store endpoint.
type Invoice struct {
	ExternalID    string    `json:"externalId,omitempty"`
	InvoiceNumber string    `json:"invoiceNumber"`
	SeriesCode    string    `json:"seriesCode,omitempty"`
	IssuedAt      string    `json:"issuedAt,omitempty"` // ISO 8601 date
	Customer      *Party    `json:"customer,omitempty"`
	TotalAmount   float64   `json:"totalAmount"`
	TaxLines      []TaxLine `json:"taxLines,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// InvoiceResult is the server's answer to a stored invoice.
type InvoiceResult struct {
	Success    bool   `json:"success"`
	InvoiceID  string `json:"invoiceId"`
	ChainIndex int    `json:"chainIndex"`
}

// ReaderResult is the parsed output of a file-based invoice read.
type ReaderResult struct {
	Success bool     `json:"success"`
	Invoice *Invoice `json:"invoice,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Makeup describes how an invoice should be rendered to PDF.
type Makeup struct {
	Invoice  Invoice `json:"invoice"`
	Template string  `json:"template,omitempty"`
	Locale   string  `json:"locale,omitempty"`
}
