package transfer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mdrbohlav/transfer-idoklad2fakturoid/fakturoid"
	"github.com/mdrbohlav/transfer-idoklad2fakturoid/idoklad"
)

type fakeSource struct {
	pdfs        map[int]string
	attachments map[int]string
	pdfErr      error
}

func (f *fakeSource) GetPDF(t idoklad.RecordType, id int) (string, error) {
	if f.pdfErr != nil {
		return "", f.pdfErr
	}
	return f.pdfs[id], nil
}

func (f *fakeSource) GetAttachment(t idoklad.RecordType, id int) (string, error) {
	return f.attachments[id], nil
}

type fakeDestination struct {
	subjects     []fakturoid.Subject
	invoices     []fakturoid.Invoice
	expenses     []fakturoid.Expense
	paidInvoices map[int]string
	paidExpenses map[int]string
	nextID       int
}

func newFakeDestination() *fakeDestination {
	return &fakeDestination{
		paidInvoices: map[int]string{},
		paidExpenses: map[int]string{},
		nextID:       100,
	}
}

func (f *fakeDestination) CreateSubject(subject fakturoid.Subject) (fakturoid.Subject, error) {
	f.nextID++
	subject.ID = f.nextID
	f.subjects = append(f.subjects, subject)
	return subject, nil
}

func (f *fakeDestination) CreateInvoice(invoice fakturoid.Invoice) (fakturoid.Record, error) {
	f.nextID++
	f.invoices = append(f.invoices, invoice)
	return fakturoid.Record{ID: f.nextID, Number: invoice.Number}, nil
}

func (f *fakeDestination) CreateExpense(expense fakturoid.Expense) (fakturoid.Record, error) {
	f.nextID++
	f.expenses = append(f.expenses, expense)
	return fakturoid.Record{ID: f.nextID, Number: expense.Number}, nil
}

func (f *fakeDestination) PayInvoice(id int, paidAt string) error {
	f.paidInvoices[id] = paidAt
	return nil
}

func (f *fakeDestination) PayExpense(id int, paidOn string) error {
	f.paidExpenses[id] = paidOn
	return nil
}

func newProcessor(source SourceAPI, destination DestinationAPI) *Processor {
	return &Processor{
		Source:      source,
		Destination: destination,
		Confirm:     func(string) bool { return true },
		Log:         zap.NewNop().Sugar(),
	}
}

func invoiceRecord(number string) idoklad.Record {
	return idoklad.Record{
		ID:             1,
		DocumentNumber: number,
		LanguageCode:   "cs-CZ",
		PaymentOption:  idoklad.CodeRef{Code: "H"},
		Currency:       idoklad.CodeRef{Code: "CZK"},
		Purchaser: idoklad.Contact{
			CompanyName:          "Acme s.r.o.",
			IdentificationNumber: "12345678",
		},
		IssuedInvoiceItems: []idoklad.Line{{Name: "Item", Amount: 1, UnitPrice: 100, VatRate: 21, TotalPrice: 121}},
	}
}

func expenseRecord(number string) idoklad.Record {
	return idoklad.Record{
		ID:             2,
		DocumentNumber: number,
		PaymentOption:  idoklad.CodeRef{Code: "H"},
		Currency:       idoklad.CodeRef{Code: "CZK"},
		Supplier: idoklad.Contact{
			CompanyName:          "Dodavatel a.s.",
			IdentificationNumber: "87654321",
		},
		Items: []idoklad.Line{{Name: "Paper", Amount: 1, UnitPrice: 50, VatRate: 21, TotalPrice: 60}},
	}
}

func TestProcessRecordSkipsAlreadyTransferred(t *testing.T) {
	dest := newFakeDestination()
	p := newProcessor(&fakeSource{}, dest)
	record := invoiceRecord("2024001")
	state := &State{Invoices: []fakturoid.Record{{ID: 9, Number: "2024001"}}}

	outcome, err := p.ProcessRecord(&record, idoklad.TypeInvoice, state)

	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Empty(t, dest.invoices)
}

func TestProcessRecordExpenseDedupUsesRewrittenNumber(t *testing.T) {
	dest := newFakeDestination()
	p := newProcessor(&fakeSource{}, dest)
	record := expenseRecord("DF2024001")
	state := &State{Expenses: []fakturoid.Record{{ID: 9, Number: "N2024001"}}}

	outcome, err := p.ProcessRecord(&record, idoklad.TypeExpense, state)

	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Empty(t, dest.expenses)
}

func TestProcessRecordCreatesAndPays(t *testing.T) {
	dest := newFakeDestination()
	p := newProcessor(&fakeSource{}, dest)
	record := invoiceRecord("2024001")
	record.DateOfPayment = "2024-01-20"
	state := &State{
		Subjects: []fakturoid.Subject{{ID: 42, RegistrationNo: "12345678"}},
	}

	outcome, err := p.ProcessRecord(&record, idoklad.TypeInvoice, state)

	require.NoError(t, err)
	assert.Equal(t, StatusCreated, outcome.Status)
	assert.Equal(t, "2024001", outcome.Record.Number)
	assert.Nil(t, outcome.NewSubject)

	require.Len(t, dest.invoices, 1)
	assert.Equal(t, 42, dest.invoices[0].SubjectID)
	assert.Equal(t, "2024-01-20", dest.paidInvoices[outcome.Record.ID])
}

func TestProcessRecordDoesNotPayWithoutPaymentDate(t *testing.T) {
	dest := newFakeDestination()
	p := newProcessor(&fakeSource{}, dest)
	record := invoiceRecord("2024001")
	state := &State{Subjects: []fakturoid.Subject{{ID: 42, RegistrationNo: "12345678"}}}

	outcome, err := p.ProcessRecord(&record, idoklad.TypeInvoice, state)

	require.NoError(t, err)
	assert.Equal(t, StatusCreated, outcome.Status)
	assert.Empty(t, dest.paidInvoices)
}

func TestProcessRecordCreatesMissingSubject(t *testing.T) {
	dest := newFakeDestination()
	p := newProcessor(&fakeSource{}, dest)
	record := expenseRecord("DF2024001")
	record.DateOfPayment = "2024-02-10"
	state := &State{}

	outcome, err := p.ProcessRecord(&record, idoklad.TypeExpense, state)

	require.NoError(t, err)
	assert.Equal(t, StatusCreated, outcome.Status)
	require.NotNil(t, outcome.NewSubject)
	assert.Equal(t, "supplier", outcome.NewSubject.Type)
	assert.Equal(t, "87654321", outcome.NewSubject.RegistrationNo)

	require.Len(t, dest.expenses, 1)
	assert.Equal(t, outcome.NewSubject.ID, dest.expenses[0].SubjectID)
	assert.Equal(t, "N2024001", dest.expenses[0].Number)
	assert.Equal(t, "2024-02-10", dest.paidExpenses[outcome.Record.ID])
}

func TestProcessRecordBankAccountOnlyForBankMethod(t *testing.T) {
	dest := newFakeDestination()
	p := newProcessor(&fakeSource{}, dest)
	state := &State{
		Subjects:     []fakturoid.Subject{{ID: 42, RegistrationNo: "12345678"}},
		BankAccounts: []fakturoid.BankAccount{{ID: 7, Number: "123/0100"}},
	}

	record := invoiceRecord("2024001")
	record.PaymentOption = idoklad.CodeRef{Code: "B"}
	record.MyCompanyDocumentAddress.AccountNumber = "123"
	record.MyCompanyDocumentAddress.BankNumberCode = "0100"

	_, err := p.ProcessRecord(&record, idoklad.TypeInvoice, state)
	require.NoError(t, err)
	require.Len(t, dest.invoices, 1)
	assert.Equal(t, 7, dest.invoices[0].BankAccount)

	// A cash record must not carry a bank account even when one would
	// match.
	cash := invoiceRecord("2024002")
	cash.MyCompanyDocumentAddress.AccountNumber = "123"
	cash.MyCompanyDocumentAddress.BankNumberCode = "0100"

	_, err = p.ProcessRecord(&cash, idoklad.TypeInvoice, state)
	require.NoError(t, err)
	require.Len(t, dest.invoices, 2)
	assert.Zero(t, dest.invoices[1].BankAccount)
}

func TestProcessRecordFailsOnMissingBankAccount(t *testing.T) {
	dest := newFakeDestination()
	p := newProcessor(&fakeSource{}, dest)
	state := &State{Subjects: []fakturoid.Subject{{ID: 42, RegistrationNo: "12345678"}}}

	record := invoiceRecord("2024001")
	record.PaymentOption = idoklad.CodeRef{Code: "B"}
	record.MyCompanyDocumentAddress.AccountNumber = "999"
	record.MyCompanyDocumentAddress.BankNumberCode = "0100"

	_, err := p.ProcessRecord(&record, idoklad.TypeInvoice, state)

	var notFound *BankAccountNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Empty(t, dest.invoices)
}

func TestProcessRecordFailsOnUnknownPaymentMethod(t *testing.T) {
	p := newProcessor(&fakeSource{}, newFakeDestination())
	record := invoiceRecord("2024001")
	record.PaymentOption = idoklad.CodeRef{Code: "X"}
	state := &State{Subjects: []fakturoid.Subject{{ID: 42, RegistrationNo: "12345678"}}}

	_, err := p.ProcessRecord(&record, idoklad.TypeInvoice, state)

	var unknownErr *UnknownPaymentMethodError
	require.ErrorAs(t, err, &unknownErr)
}

func TestProcessRecordRejectsUnknownRecordType(t *testing.T) {
	p := newProcessor(&fakeSource{}, newFakeDestination())
	record := invoiceRecord("2024001")

	_, err := p.ProcessRecord(&record, idoklad.RecordType("voucher"), &State{})

	var unknownType *idoklad.UnknownRecordTypeError
	require.ErrorAs(t, err, &unknownType)
}

func TestProcessRecordAttachsSourceAttachment(t *testing.T) {
	dest := newFakeDestination()
	source := &fakeSource{attachments: map[int]string{1: "QkFTRTY0"}}
	p := newProcessor(source, dest)

	record := invoiceRecord("2024001")
	record.AttachmentFileName = "invoice.pdf"
	state := &State{Subjects: []fakturoid.Subject{{ID: 42, RegistrationNo: "12345678"}}}

	_, err := p.ProcessRecord(&record, idoklad.TypeInvoice, state)

	require.NoError(t, err)
	require.Len(t, dest.invoices, 1)
	assert.Equal(t, "data:application/pdf;base64,QkFTRTY0", dest.invoices[0].Attachment)
}

func TestProcessRecordExportsPDF(t *testing.T) {
	dest := newFakeDestination()
	source := &fakeSource{pdfs: map[int]string{1: "aGVsbG8="}} // "hello"
	p := newProcessor(source, dest)
	p.ExportPDF = true
	p.ExportDir = t.TempDir()

	record := invoiceRecord("2024001")
	state := &State{Subjects: []fakturoid.Subject{{ID: 42, RegistrationNo: "12345678"}}}

	_, err := p.ProcessRecord(&record, idoklad.TypeInvoice, state)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(p.ExportDir, "invoices", "2024001.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestProcessRecordPDFExportFailureIsFatal(t *testing.T) {
	source := &fakeSource{pdfErr: errors.New("pdf rendering failed")}
	p := newProcessor(source, newFakeDestination())
	p.ExportPDF = true
	p.ExportDir = t.TempDir()

	record := invoiceRecord("2024001")

	_, err := p.ProcessRecord(&record, idoklad.TypeInvoice, &State{})
	require.Error(t, err)
}

func TestProcessRecordVatMismatchDeclinedAborts(t *testing.T) {
	dest := newFakeDestination()
	p := newProcessor(&fakeSource{}, dest)
	p.Confirm = func(string) bool { return false }

	record := invoiceRecord("2024001")
	record.MyCompanyDocumentAddress.VatIdentificationNumber = "CZ111"
	state := &State{Account: fakturoid.Account{VatNo: "CZ222"}}

	outcome, err := p.ProcessRecord(&record, idoklad.TypeInvoice, state)

	require.NoError(t, err)
	assert.Equal(t, StatusAborted, outcome.Status)
	assert.Empty(t, dest.invoices)
}

func TestProcessRecordVatMismatchConfirmedContinues(t *testing.T) {
	dest := newFakeDestination()
	p := newProcessor(&fakeSource{}, dest)

	var prompted string
	p.Confirm = func(prompt string) bool {
		prompted = prompt
		return true
	}

	record := invoiceRecord("2024001")
	record.MyCompanyDocumentAddress.VatIdentificationNumber = "CZ111"
	state := &State{
		Account:  fakturoid.Account{VatNo: "CZ222"},
		Subjects: []fakturoid.Subject{{ID: 42, RegistrationNo: "12345678"}},
	}

	outcome, err := p.ProcessRecord(&record, idoklad.TypeInvoice, state)

	require.NoError(t, err)
	assert.Equal(t, StatusCreated, outcome.Status)
	assert.Contains(t, prompted, "CZ222")
	assert.Contains(t, prompted, "CZ111")
}

func TestProcessRecordVatCheckDisabled(t *testing.T) {
	dest := newFakeDestination()
	p := newProcessor(&fakeSource{}, dest)
	p.SkipVATCheck = true
	p.Confirm = func(string) bool {
		t.Fatal("confirmation requested with VAT check disabled")
		return false
	}

	record := invoiceRecord("2024001")
	record.MyCompanyDocumentAddress.VatIdentificationNumber = "CZ111"
	state := &State{
		Account:  fakturoid.Account{VatNo: "CZ222"},
		Subjects: []fakturoid.Subject{{ID: 42, RegistrationNo: "12345678"}},
	}

	outcome, err := p.ProcessRecord(&record, idoklad.TypeInvoice, state)

	require.NoError(t, err)
	assert.Equal(t, StatusCreated, outcome.Status)
}

func TestRunAbortStopsCurrentTypeOnly(t *testing.T) {
	dest := newFakeDestination()
	p := newProcessor(&fakeSource{}, dest)
	p.Confirm = func(string) bool { return false }

	mismatched := invoiceRecord("2024001")
	mismatched.MyCompanyDocumentAddress.VatIdentificationNumber = "CZ111"
	second := invoiceRecord("2024002")

	expense := expenseRecord("DF2024001")

	state := &State{Account: fakturoid.Account{VatNo: ""}}
	// Only the first invoice mismatches the (empty) account VAT; the
	// expense matches, so expense processing must still happen after
	// the invoice loop aborts.
	totals, err := p.Run(
		[]idoklad.Record{mismatched, second},
		[]idoklad.Record{expense},
		state,
	)

	require.NoError(t, err)
	assert.Equal(t, 0, totals.Invoices)
	assert.Equal(t, 1, totals.Expenses)
	assert.Empty(t, dest.invoices)
	assert.Len(t, dest.expenses, 1)
}

func TestRunFoldsNewSubjectsIntoState(t *testing.T) {
	dest := newFakeDestination()
	p := newProcessor(&fakeSource{}, dest)

	first := invoiceRecord("2024001")
	second := invoiceRecord("2024002")
	// Same purchaser on both: the second record must reuse the subject
	// created for the first.
	totals, err := p.Run([]idoklad.Record{first, second}, nil, &State{})

	require.NoError(t, err)
	assert.Equal(t, 2, totals.Invoices)
	assert.Len(t, dest.subjects, 1)

	require.Len(t, dest.invoices, 2)
	assert.Equal(t, dest.invoices[0].SubjectID, dest.invoices[1].SubjectID)
}

func TestRunIsIdempotent(t *testing.T) {
	dest := newFakeDestination()
	p := newProcessor(&fakeSource{}, dest)

	invoices := []idoklad.Record{invoiceRecord("2024001"), invoiceRecord("2024002")}
	expenses := []idoklad.Record{expenseRecord("DF2024001")}

	state := &State{}
	totals, err := p.Run(invoices, expenses, state)
	require.NoError(t, err)
	assert.Equal(t, Totals{Invoices: 2, Expenses: 1}, totals)

	// Second run over the same source against the state produced by
	// the first run creates nothing.
	totals, err = p.Run(invoices, expenses, state)
	require.NoError(t, err)
	assert.Equal(t, Totals{}, totals)
	assert.Len(t, dest.invoices, 2)
	assert.Len(t, dest.expenses, 1)
}
