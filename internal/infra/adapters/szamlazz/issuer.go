// File: internal/infra/adapters/szamlazz/issuer.go
package szamlazz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"stripe-invoice-bridge/internal/config"
	"stripe-invoice-bridge/internal/domain"
	"stripe-invoice-bridge/internal/domain/model"
	"stripe-invoice-bridge/internal/domain/ports/adapter"
)

var _ adapter.InvoiceIssuer = (*Issuer)(nil)

const (
	defaultAPIURL = "https://www.szamlazz.hu/szamla/"

	// The agent returns the created document's number in this response
	// header; the body is the PDF (or an error text).
	invoiceNumberHeader = "szlahu_szamlaszam"
	errorHeader         = "szlahu_error"
)

// Issuer implements adapter.InvoiceIssuer against the Számlázz.hu agent
// API: one multipart POST carrying the invoice XML, invoice number read
// back from a response header.
type Issuer struct {
	apiURL      string
	agentKey    string
	eInvoice    bool
	issuerName  string
	bank        string
	bankAccount string
	client      *http.Client
	now         func() time.Time
}

func NewIssuer(cfg config.SzamlazzConfig) *Issuer {
	url := cfg.APIURL
	if url == "" {
		url = defaultAPIURL
	}
	return &Issuer{
		apiURL:      url,
		agentKey:    cfg.AgentKey,
		eInvoice:    cfg.EInvoice,
		issuerName:  cfg.IssuerName,
		bank:        cfg.Bank,
		bankAccount: cfg.BankAccount,
		client:      &http.Client{Timeout: 30 * time.Second},
		now:         time.Now,
	}
}

func (i *Issuer) Issue(ctx context.Context, rec *model.InvoiceRecord) (string, error) {
	body, err := i.buildInvoiceXML(rec)
	if err != nil {
		return "", &adapter.IssuerError{Kind: adapter.IssuerErrMalformed, Err: err}
	}
	return i.call(ctx, body)
}

func (i *Issuer) Cancel(ctx context.Context, originalNumber string, rec *model.InvoiceRecord) (string, error) {
	body, err := i.buildStornoXML(originalNumber, rec)
	if err != nil {
		return "", &adapter.IssuerError{Kind: adapter.IssuerErrMalformed, Err: err}
	}
	return i.call(ctx, body)
}

func (i *Issuer) call(ctx context.Context, xmlBody []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("action-xmlagentxmlfile", "invoice.xml")
	if err != nil {
		return "", &adapter.IssuerError{Kind: adapter.IssuerErrTransport, Err: err}
	}
	if _, err := fw.Write(xmlBody); err != nil {
		return "", &adapter.IssuerError{Kind: adapter.IssuerErrTransport, Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &adapter.IssuerError{Kind: adapter.IssuerErrTransport, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.apiURL, &buf)
	if err != nil {
		return "", &adapter.IssuerError{Kind: adapter.IssuerErrTransport, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := i.client.Do(req)
	if err != nil {
		return "", &adapter.IssuerError{Kind: adapter.IssuerErrTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &adapter.IssuerError{
			Kind: adapter.IssuerErrRejected,
			Err:  fmt.Errorf("agent returned %d: %s", resp.StatusCode, strings.TrimSpace(string(text))),
		}
	}
	if msg := resp.Header.Get(errorHeader); msg != "" {
		return "", &adapter.IssuerError{Kind: adapter.IssuerErrRejected, Err: fmt.Errorf("agent error: %s", msg)}
	}

	if number := resp.Header.Get(invoiceNumberHeader); number != "" {
		return number, nil
	}

	// Fallback: some agent responses carry the number in the text part of
	// the body before the PDF payload.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if number := numberFromBody(string(raw)); number != "" {
		return number, nil
	}
	return "", &adapter.IssuerError{Kind: adapter.IssuerErrMalformed, Err: domain.ErrNoInvoiceNumber}
}

func numberFromBody(body string) string {
	text, _, _ := strings.Cut(body, "%PDF-")
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, invoiceNumberHeader) {
			continue
		}
		if _, v, ok := strings.Cut(line, "="); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
