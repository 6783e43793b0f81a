// File: internal/infra/adapters/szamlazz/xml.go
package szamlazz

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stripe-invoice-bridge/internal/domain/model"
)

// Agent XML for the xmlszamla and xmlszamlast endpoints. Element order
// matters to the schemas, so these mirror the xsds and amounts are
// formatted to two decimals only here, at the serialization boundary.

const (
	xmlNamespace    = "http://www.szamlazz.hu/xmlszamla"
	stornoNamespace = "http://www.szamlazz.hu/xmlszamlast"

	serviceFeePrefix = "Szervizdíj"
)

type xmlInvoice struct {
	XMLName  xml.Name    `xml:"xmlszamla"`
	Xmlns    string      `xml:"xmlns,attr"`
	Settings xmlSettings `xml:"beallitasok"`
	Header   xmlHeader   `xml:"fejlec"`
	Seller   xmlSeller   `xml:"elado"`
	Buyer    xmlBuyer    `xml:"vevo"`
	Items    []xmlItem   `xml:"tetelek>tetel"`
}

type xmlSettings struct {
	AgentKey        string `xml:"szamlaagentkulcs"`
	EInvoice        bool   `xml:"eszamla"`
	DownloadInvoice bool   `xml:"szamlaLetoltes"`
	ResponseVersion int    `xml:"valaszVerzio"`
}

type xmlHeader struct {
	IssueDate       string `xml:"keltDatum"`
	FulfillmentDate string `xml:"teljesitesDatum"`
	DueDate         string `xml:"fizetesiHataridoDatum"`
	PaymentMethod   string `xml:"fizmod"`
	Currency        string `xml:"penznem"`
	Language        string `xml:"szamlaNyelve"`
	AdvanceInvoice  bool   `xml:"elolegszamla"`
	Paid            bool   `xml:"fizetve"`
}

type xmlSeller struct {
	Bank        string `xml:"bank,omitempty"`
	BankAccount string `xml:"bankszamlaszam,omitempty"`
}

type xmlBuyer struct {
	Name       string `xml:"nev"`
	PostalCode string `xml:"irsz"`
	City       string `xml:"telepules"`
	Address    string `xml:"cim"`
	Email      string `xml:"email"`
	SendEmail  bool   `xml:"sendEmail"`
	TaxSubject int    `xml:"adoalany"`
}

type xmlItem struct {
	Name     string `xml:"megnevezes"`
	Quantity int64  `xml:"mennyiseg"`
	Unit     string `xml:"mennyisegiEgyseg"`
	UnitNet  string `xml:"nettoEgysegar"`
	VATRate  string `xml:"afakulcs"`
	Net      string `xml:"nettoErtek"`
	VAT      string `xml:"afaErtek"`
	Gross    string `xml:"bruttoErtek"`
}

// Cancellation document for the xmlszamlast endpoint. A much smaller shape:
// the header names the invoice being voided, tipus SS marks it a storno,
// and there are no line items at all.
type xmlStorno struct {
	XMLName  xml.Name        `xml:"xmlszamlast"`
	Xmlns    string          `xml:"xmlns,attr"`
	Settings xmlSettings     `xml:"beallitasok"`
	Header   xmlStornoHeader `xml:"fejlec"`
	Seller   xmlStornoSeller `xml:"elado"`
	Buyer    xmlStornoBuyer  `xml:"vevo"`
}

type xmlStornoHeader struct {
	InvoiceNumber string `xml:"szamlaszam"`
	IssueDate     string `xml:"keltDatum"`
	Type          string `xml:"tipus"`
}

type xmlStornoSeller struct {
	EmailReplyTo string `xml:"emailReplyto"`
	EmailSubject string `xml:"emailTargy"`
	EmailBody    string `xml:"emailSzoveg"`
}

type xmlStornoBuyer struct {
	Email string `xml:"email"`
}

func day(t time.Time) string { return t.UTC().Format("2006-01-02") }

func two(v float64) string { return fmt.Sprintf("%.2f", v) }

// vatCode renders the afakulcs element: the issuer's tax category code
// (AAM, TAM, ...) when the product carries one, otherwise the numeric rate.
func vatCode(l model.InvoiceLine) string {
	if l.VATType != "" {
		return l.VATType
	}
	return strconv.Itoa(l.VATRate)
}

// buildInvoiceXML renders the invoice creation request for rec.
func (i *Issuer) buildInvoiceXML(rec *model.InvoiceRecord) ([]byte, error) {
	// A service-fee split means the charged price prepays the fee; the
	// agent wants such documents flagged as advance invoices.
	advance := false
	for _, l := range rec.Lines {
		if strings.HasPrefix(l.ProductName, serviceFeePrefix) {
			advance = true
			break
		}
	}

	doc := xmlInvoice{
		Xmlns:    xmlNamespace,
		Settings: i.settings(),
		Header: xmlHeader{
			IssueDate:       day(i.now()),
			FulfillmentDate: day(rec.PaymentDate),
			DueDate:         day(rec.PaymentDate),
			PaymentMethod:   "Paylink",
			Currency:        strings.ToUpper(rec.Currency),
			Language:        "hu",
			AdvanceInvoice:  advance,
			Paid:            true,
		},
		Seller: xmlSeller{Bank: i.bank, BankAccount: i.bankAccount},
		Buyer: xmlBuyer{
			Name:       rec.Billing.Name,
			PostalCode: rec.Billing.PostalCode,
			City:       rec.Billing.City,
			Address:    rec.Billing.Address,
			Email:      rec.Billing.Email,
			SendEmail:  true,
			TaxSubject: -1, // unknown; consumer purchases carry no tax number
		},
	}
	for _, l := range rec.Lines {
		doc.Items = append(doc.Items, xmlItem{
			Name:     l.ProductName,
			Quantity: l.Quantity,
			Unit:     "db",
			UnitNet:  two(l.UnitNet()),
			VATRate:  vatCode(l),
			Net:      two(l.Net()),
			VAT:      two(l.VAT()),
			Gross:    two(l.Gross),
		})
	}
	return marshal(doc)
}

// buildStornoXML renders the cancellation request voiding originalNumber.
func (i *Issuer) buildStornoXML(originalNumber string, rec *model.InvoiceRecord) ([]byte, error) {
	doc := xmlStorno{
		Xmlns:    stornoNamespace,
		Settings: i.settings(),
		Header: xmlStornoHeader{
			InvoiceNumber: originalNumber,
			IssueDate:     day(i.now()),
			Type:          "SS",
		},
		Seller: xmlStornoSeller{
			EmailReplyTo: i.issuerName,
			EmailSubject: "Sztornó számla",
			EmailBody:    "Tisztelt Ügyfelünk! Mellékeljük sztornó számláját.",
		},
		Buyer: xmlStornoBuyer{Email: rec.Billing.Email},
	}
	return marshal(doc)
}

func (i *Issuer) settings() xmlSettings {
	return xmlSettings{
		AgentKey:        i.agentKey,
		EInvoice:        i.eInvoice,
		DownloadInvoice: false,
		ResponseVersion: 1,
	}
}

func marshal(doc any) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
