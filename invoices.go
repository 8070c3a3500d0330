package invo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/pkg/errors"

	"github.com/invohq/invo-go/rest"
)

// CreateInvoice stores an invoice and returns its assigned identifier
// and chain position.
func (c *Client) CreateInvoice(ctx context.Context, invoice Invoice) (InvoiceResult, error) {
	resp, err := c.do(ctx, rest.Request{
		Method: http.MethodPost,
		Path:   "/invoice/store",
		Body:   invoice,
	})
	if err != nil {
		return InvoiceResult{}, err
	}
	var result InvoiceResult
	if err := resp.DecodeJSON(&result); err != nil {
		return InvoiceResult{}, err
	}
	return result, nil
}

// ReadInvoiceFile uploads an invoice document (PDF, image, XML) for
// server-side extraction. The file is sent as a multipart form.
func (c *Client) ReadInvoiceFile(ctx context.Context, filename string, file io.Reader) (ReaderResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return ReaderResult{}, errors.Wrap(err, "building multipart form")
	}
	if _, err := io.Copy(part, file); err != nil {
		return ReaderResult{}, errors.Wrap(err, "copying file into multipart form")
	}
	if err := writer.Close(); err != nil {
		return ReaderResult{}, errors.Wrap(err, "finalizing multipart form")
	}

	resp, err := c.do(ctx, rest.Request{
		Method:      http.MethodPost,
		Path:        "/reader",
		Body:        &buf,
		ContentType: writer.FormDataContentType(),
	})
	if err != nil {
		return ReaderResult{}, err
	}
	var result ReaderResult
	if err := resp.DecodeJSON(&result); err != nil {
		return ReaderResult{}, err
	}
	return result, nil
}

// RenderPDF renders an invoice makeup into PDF bytes. The endpoint
// sometimes answers with JSON-wrapped bytes instead of a binary body;
// the executor unwraps either shape.
func (c *Client) RenderPDF(ctx context.Context, makeup Makeup) ([]byte, error) {
	resp, err := c.do(ctx, rest.Request{
		Method: http.MethodPost,
		Path:   "/makeup",
		Body:   makeup,
		Result: rest.ResultBinary,
	})
	if err != nil {
		return nil, err
	}
	return resp.Bytes, nil
}

// Request performs an authenticated call against any API path and
// returns the raw JSON body. It is the escape hatch for endpoints the
// typed facade does not cover.
func (c *Client) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	resp, err := c.do(ctx, rest.Request{
		Method: method,
		Path:   path,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Bytes), nil
}
