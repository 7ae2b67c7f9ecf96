package fakturoid

// Account is the destination account detail; only the VAT number is
// consumed (by the VAT consistency gate).
type Account struct {
	Name  string `json:"name"`
	VatNo string `json:"vat_no"`
}

// Subject is a Fakturoid contact, both as a create payload and as the
// created/listed entity.
type Subject struct {
	ID               int    `json:"id,omitempty"`
	Type             string `json:"type,omitempty"`
	Name             string `json:"name"`
	Street           string `json:"street"`
	City             string `json:"city"`
	Zip              string `json:"zip"`
	Country          string `json:"country"`
	RegistrationNo   string `json:"registration_no"`
	VatNo            string `json:"vat_no"`
	LocalVatNo       string `json:"local_vat_no"`
	EnabledReminders bool   `json:"enabled_reminders"`
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Web              string `json:"web"`
}

// BankAccount is a destination bank account; never created by this
// tool, only matched by its "account/bankCode" number.
type BankAccount struct {
	ID     int    `json:"id"`
	Number string `json:"number"`
}

// Record is the slice of an invoice or expense this tool cares about
// when listing existing records or reading back a created one.
type Record struct {
	ID     int    `json:"id"`
	Number string `json:"number"`
}

// Line is one destination record line item.
type Line struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitName  string  `json:"unit_name"`
	UnitPrice float64 `json:"unit_price"`
	VatRate   float64 `json:"vat_rate"`
}

// Invoice is the create payload for an issued invoice.
type Invoice struct {
	Number                string  `json:"number"`
	VariableSymbol        string  `json:"variable_symbol"`
	SubjectID             int     `json:"subject_id"`
	OrderNumber           string  `json:"order_number"`
	IssuedOn              string  `json:"issued_on"`
	TaxableFulfillmentDue string  `json:"taxable_fulfillment_due"`
	Due                   string  `json:"due"`
	Note                  string  `json:"note"`
	FooterNote            string  `json:"footer_note"`
	PrivateNote           string  `json:"private_note"`
	Iban                  string  `json:"iban"`
	SwiftBic              string  `json:"swift_bic"`
	PaymentMethod         string  `json:"payment_method"`
	Currency              string  `json:"currency"`
	ExchangeRate          float64 `json:"exchange_rate"`
	Language              string  `json:"language"`
	Lines                 []Line  `json:"lines"`
	BankAccount           int     `json:"bank_account,omitempty"`
	Attachment            string  `json:"attachment,omitempty"`
}

// Expense is the create payload for an expense.
type Expense struct {
	Number                string  `json:"number"`
	OriginalNumber        string  `json:"original_number"`
	VariableSymbol        string  `json:"variable_symbol"`
	SubjectID             int     `json:"subject_id"`
	DocumentType          string  `json:"document_type"`
	IssuedOn              string  `json:"issued_on"`
	TaxableFulfillmentDue string  `json:"taxable_fulfillment_due"`
	DueOn                 string  `json:"due_on"`
	Description           string  `json:"description"`
	PrivateNote           string  `json:"private_note"`
	PaymentMethod         string  `json:"payment_method"`
	HideBankAccount       bool    `json:"hide_bank_account"`
	Currency              string  `json:"currency"`
	ExchangeRate          float64 `json:"exchange_rate"`
	Lines                 []Line  `json:"lines"`
	Attachment            string  `json:"attachment,omitempty"`
}
