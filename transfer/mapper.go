// Package transfer translates iDoklad records into Fakturoid payloads
// and drives the per-record transfer pipeline.
package transfer

import (
	"strings"

	"github.com/mdrbohlav/transfer-idoklad2fakturoid/fakturoid"
	"github.com/mdrbohlav/transfer-idoklad2fakturoid/idoklad"
)

// paymentMethods maps iDoklad payment option codes to Fakturoid
// payment methods. Any code outside this table fails the run.
var paymentMethods = map[string]string{
	"B":  "bank",
	"H":  "cash",
	"D":  "cod",
	"PP": "paypal",
	"P":  "card",
}

// PaymentMethodBank is the only method that carries a bank account
// reference on the destination record.
const PaymentMethodBank = "bank"

// roundingLineCode marks the synthetic rounding line iDoklad appends
// to keep totals on whole units.
const roundingLineCode = "ZaokPol"

// MakeSubject builds a Fakturoid contact payload from a record's
// counterparty. kind is "customer" for invoices, "supplier" for
// expenses. Reminders are disabled so migrated contacts are not
// suddenly dunned.
func MakeSubject(contact idoklad.Contact, kind string) fakturoid.Subject {
	return fakturoid.Subject{
		Type:             kind,
		Name:             contact.CompanyName,
		Street:           contact.Street,
		City:             contact.City,
		Zip:              contact.PostalCode,
		Country:          contact.Country.Code,
		RegistrationNo:   contact.IdentificationNumber,
		VatNo:            contact.VatIdentificationNumber,
		LocalVatNo:       contact.VatIdentificationNumberSk,
		EnabledReminders: false,
		FullName:         strings.TrimSpace(contact.Firstname + " " + contact.Surname),
		Email:            contact.Email,
		Phone:            contact.Mobile,
		Web:              contact.Www,
	}
}

// MakeAttachment wraps a base64 PDF payload into the data URI form
// Fakturoid expects on record creation.
func MakeAttachment(base64Payload string) string {
	return "data:application/pdf;base64," + base64Payload
}

// FindPaymentMethod resolves a record's payment option code against
// the mapping table.
func FindPaymentMethod(record *idoklad.Record) (string, error) {
	code := record.PaymentOption.Code
	method, ok := paymentMethods[code]
	if !ok {
		return "", &UnknownPaymentMethodError{Code: code, DocumentNumber: record.DocumentNumber}
	}
	return method, nil
}

// FindSubjectID returns the id of the subject sharing the contact's
// registration number, or 0 when none exists yet.
func FindSubjectID(subjects []fakturoid.Subject, contact idoklad.Contact) int {
	for _, subject := range subjects {
		if subject.RegistrationNo == contact.IdentificationNumber {
			return subject.ID
		}
	}
	return 0
}

// FindBankAccountID matches the record's company bank account
// ("number/bankCode") against the Fakturoid bank account list.
func FindBankAccountID(accounts []fakturoid.BankAccount, record *idoklad.Record) (int, error) {
	number := record.MyCompanyDocumentAddress.AccountNumber + "/" + record.MyCompanyDocumentAddress.BankNumberCode

	for _, account := range accounts {
		if account.Number == number {
			return account.ID, nil
		}
	}

	return 0, &BankAccountNotFoundError{Account: number, DocumentNumber: record.DocumentNumber}
}

// ConvertLines maps record line items, dropping the synthetic rounding
// line. Only an exactly-zero rounding line is dropped; a nonzero one
// is a real amount and is kept.
func ConvertLines(items []idoklad.Line) []fakturoid.Line {
	lines := make([]fakturoid.Line, 0, len(items))

	for _, item := range items {
		if item.Code == roundingLineCode && item.TotalPrice == 0 {
			continue
		}

		lines = append(lines, fakturoid.Line{
			Name:      item.Name,
			Quantity:  item.Amount,
			UnitName:  item.Unit,
			UnitPrice: item.UnitPrice,
			VatRate:   item.VatRate,
		})
	}

	return lines
}

// ConvertInvoice builds the Fakturoid invoice payload. bankAccountID 0
// and an empty attachment leave the respective fields off the payload.
func ConvertInvoice(
	invoice *idoklad.Record,
	subjectID int,
	paymentMethod string,
	attachment string,
	bankAccountID int,
) fakturoid.Invoice {
	return fakturoid.Invoice{
		Number:                invoice.DocumentNumber,
		VariableSymbol:        invoice.VariableSymbol,
		SubjectID:             subjectID,
		OrderNumber:           invoice.OrderNumber,
		IssuedOn:              invoice.DateOfIssue,
		TaxableFulfillmentDue: invoice.DateOfTaxing,
		Due:                   invoice.Maturity,
		Note:                  invoice.ItemsTextPrefix,
		FooterNote:            invoice.ItemsTextSuffix,
		PrivateNote:           invoice.Note,
		Iban:                  invoice.MyCompanyDocumentAddress.Iban,
		SwiftBic:              invoice.MyCompanyDocumentAddress.Swift,
		PaymentMethod:         paymentMethod,
		Currency:              invoice.Currency.Code,
		ExchangeRate:          invoice.ExchangeRate,
		Language:              invoiceLanguage(invoice.LanguageCode),
		Lines:                 ConvertLines(invoice.IssuedInvoiceItems),
		BankAccount:           bankAccountID,
		Attachment:            attachment,
	}
}

// ConvertExpense builds the Fakturoid expense payload. The destination
// number is derived by rewriting the "DF" prefix to "N".
func ConvertExpense(
	expense *idoklad.Record,
	subjectID int,
	paymentMethod string,
	attachment string,
) fakturoid.Expense {
	return fakturoid.Expense{
		Number:                ExpenseNumber(expense.DocumentNumber),
		OriginalNumber:        expense.ReceivedDocumentNumber,
		VariableSymbol:        expense.VariableSymbol,
		SubjectID:             subjectID,
		DocumentType:          "invoice",
		IssuedOn:              expense.DateOfReceiving,
		TaxableFulfillmentDue: expense.DateOfReceiving,
		DueOn:                 expense.DateOfPayment,
		Description:           expense.Description,
		PrivateNote:           expense.Note,
		PaymentMethod:         paymentMethod,
		HideBankAccount:       true,
		Currency:              expense.Currency.Code,
		ExchangeRate:          expense.ExchangeRate,
		Lines:                 ConvertLines(expense.Items),
		Attachment:            attachment,
	}
}

// ExpenseNumber derives the destination record number for an expense.
func ExpenseNumber(documentNumber string) string {
	return strings.Replace(documentNumber, "DF", "N", 1)
}

// invoiceLanguage derives the Fakturoid language from an iDoklad
// locale code: the region subtag of e.g. "cs-CZ" lowercased, or the
// whole code lowercased when there is no region.
func invoiceLanguage(code string) string {
	if i := strings.Index(code, "-"); i >= 0 {
		return strings.ToLower(code[i+1:])
	}
	return strings.ToLower(code)
}
