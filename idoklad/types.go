package idoklad

// RecordType is the closed set of source record kinds handled by the
// transfer. All routing switches on this type, never on raw strings.
type RecordType string

const (
	TypeInvoice RecordType = "invoice"
	TypeExpense RecordType = "expense"
)

// UnknownRecordTypeError is only reachable when a RecordType value
// outside the two constants leaks into a routing switch.
type UnknownRecordTypeError struct {
	Type string
}

func (e *UnknownRecordTypeError) Error() string {
	return "Unknown record type: " + e.Type
}

// CodeRef is iDoklad's wrapper for enumerated references (currency,
// payment option, country).
type CodeRef struct {
	Code string `json:"Code"`
}

// Contact is the party sub-document embedded in a record: Purchaser on
// issued invoices, Supplier on received ones.
type Contact struct {
	CompanyName               string  `json:"CompanyName"`
	Firstname                 string  `json:"Firstname"`
	Surname                   string  `json:"Surname"`
	Street                    string  `json:"Street"`
	City                      string  `json:"City"`
	PostalCode                string  `json:"PostalCode"`
	Country                   CodeRef `json:"Country"`
	IdentificationNumber      string  `json:"IdentificationNumber"`
	VatIdentificationNumber   string  `json:"VatIdentificationNumber"`
	VatIdentificationNumberSk string  `json:"VatIdentificationNumberSk"`
	Email                     string  `json:"Email"`
	Mobile                    string  `json:"Mobile"`
	Www                       string  `json:"Www"`
}

// CompanyAddress is the issuing company's sub-document on a record,
// carrying the bank account the record was issued against.
type CompanyAddress struct {
	AccountNumber           string `json:"AccountNumber"`
	BankNumberCode          string `json:"BankNumberCode"`
	Iban                    string `json:"Iban"`
	Swift                   string `json:"Swift"`
	VatIdentificationNumber string `json:"VatIdentificationNumber"`
}

// Line is one record line item. Code and TotalPrice only matter for
// spotting the synthetic rounding line.
type Line struct {
	Name       string  `json:"Name"`
	Amount     float64 `json:"Amount"`
	Unit       string  `json:"Unit"`
	UnitPrice  float64 `json:"UnitPrice"`
	VatRate    float64 `json:"VatRate"`
	Code       string  `json:"Code"`
	TotalPrice float64 `json:"TotalPrice"`
}

// Record is the superset of the issued-invoice and received-invoice
// payloads; the two expose the same shape under different field names
// (Purchaser/Supplier, IssuedInvoiceItems/Items), so one struct with
// typed accessors covers both.
type Record struct {
	ID                     int    `json:"Id"`
	DocumentNumber         string `json:"DocumentNumber"`
	ReceivedDocumentNumber string `json:"ReceivedDocumentNumber"`
	VariableSymbol         string `json:"VariableSymbol"`
	OrderNumber            string `json:"OrderNumber"`

	DateOfIssue     string `json:"DateOfIssue"`
	DateOfTaxing    string `json:"DateOfTaxing"`
	DateOfReceiving string `json:"DateOfReceiving"`
	Maturity        string `json:"Maturity"`
	DateOfPayment   string `json:"DateOfPayment"`

	ItemsTextPrefix string `json:"ItemsTextPrefix"`
	ItemsTextSuffix string `json:"ItemsTextSuffix"`
	Note            string `json:"Note"`
	Description     string `json:"Description"`

	ExchangeRate       float64 `json:"ExchangeRate"`
	LanguageCode       string  `json:"LanguageCode"`
	AttachmentFileName string  `json:"AttachmentFileName"`

	Currency      CodeRef `json:"Currency"`
	PaymentOption CodeRef `json:"PaymentOption"`

	Purchaser                Contact        `json:"Purchaser"`
	Supplier                 Contact        `json:"Supplier"`
	MyCompanyDocumentAddress CompanyAddress `json:"MyCompanyDocumentAddress"`

	IssuedInvoiceItems []Line `json:"IssuedInvoiceItems"`
	Items              []Line `json:"Items"`
}

// Party returns the counterparty for the given record type.
func (r *Record) Party(t RecordType) Contact {
	if t == TypeInvoice {
		return r.Purchaser
	}
	return r.Supplier
}

// LineItems returns the line-item slice for the given record type.
func (r *Record) LineItems(t RecordType) []Line {
	if t == TypeInvoice {
		return r.IssuedInvoiceItems
	}
	return r.Items
}
