package transfer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mdrbohlav/transfer-idoklad2fakturoid/fakturoid"
	"github.com/mdrbohlav/transfer-idoklad2fakturoid/idoklad"
)

// SourceAPI is the slice of the iDoklad client the processor needs.
type SourceAPI interface {
	GetPDF(t idoklad.RecordType, id int) (string, error)
	GetAttachment(t idoklad.RecordType, id int) (string, error)
}

// DestinationAPI is the slice of the Fakturoid client the processor
// needs.
type DestinationAPI interface {
	CreateSubject(subject fakturoid.Subject) (fakturoid.Subject, error)
	CreateInvoice(invoice fakturoid.Invoice) (fakturoid.Record, error)
	CreateExpense(expense fakturoid.Expense) (fakturoid.Record, error)
	PayInvoice(id int, paidAt string) error
	PayExpense(id int, paidOn string) error
}

// ConfirmFunc asks the operator a yes/no question. The CLI wires a
// stdin prompt; tests wire a fixed policy.
type ConfirmFunc func(prompt string) bool

// Status tags the outcome of processing one record.
type Status int

const (
	// StatusCreated: the record was transferred (and paid when due).
	StatusCreated Status = iota
	// StatusSkipped: the record already exists in Fakturoid.
	StatusSkipped
	// StatusAborted: the operator declined the VAT mismatch; the rest
	// of the current record type is not processed.
	StatusAborted
)

// Outcome is the result of processing one record. Record and
// NewSubject are only meaningful for StatusCreated; the driving loop
// folds them into its running lists.
type Outcome struct {
	Status     Status
	Record     fakturoid.Record
	NewSubject *fakturoid.Subject
}

// State is the destination-side data the pipeline reads and extends
// over the course of a run.
type State struct {
	Account      fakturoid.Account
	Subjects     []fakturoid.Subject
	BankAccounts []fakturoid.BankAccount
	Invoices     []fakturoid.Record
	Expenses     []fakturoid.Record
}

func (s *State) records(t idoklad.RecordType) *[]fakturoid.Record {
	if t == idoklad.TypeInvoice {
		return &s.Invoices
	}
	return &s.Expenses
}

// Totals reports how many records a run created.
type Totals struct {
	Invoices int
	Expenses int
}

// Processor runs the transfer pipeline against the two ledger APIs.
type Processor struct {
	Source      SourceAPI
	Destination DestinationAPI
	Confirm     ConfirmFunc
	Log         *zap.SugaredLogger

	// SkipVATCheck disables the interactive VAT consistency gate.
	SkipVATCheck bool
	// ExportPDF saves each source record's PDF under ExportDir before
	// transferring it.
	ExportPDF bool
	ExportDir string
}

// Run transfers all invoices, then all expenses, folding each created
// record and subject back into the state so later records see them. An
// operator-declined VAT mismatch stops the current record type only.
func (p *Processor) Run(invoices, expenses []idoklad.Record, state *State) (Totals, error) {
	var totals Totals
	var err error

	totals.Invoices, err = p.runType(invoices, idoklad.TypeInvoice, state)
	if err != nil {
		return totals, err
	}

	totals.Expenses, err = p.runType(expenses, idoklad.TypeExpense, state)
	if err != nil {
		return totals, err
	}

	return totals, nil
}

func (p *Processor) runType(records []idoklad.Record, t idoklad.RecordType, state *State) (int, error) {
	created := 0
	list := state.records(t)

	for i := range records {
		outcome, err := p.ProcessRecord(&records[i], t, state)
		if err != nil {
			return created, err
		}

		switch outcome.Status {
		case StatusSkipped:
			continue
		case StatusAborted:
			return created, nil
		}

		created++
		if outcome.NewSubject != nil {
			state.Subjects = append(state.Subjects, *outcome.NewSubject)
		}
		*list = append(*list, outcome.Record)
	}

	return created, nil
}

// ProcessRecord runs one record through the pipeline: dedup, VAT gate,
// optional PDF export, attachment, subject resolution, payment method
// and bank account resolution, create, pay. It does not mutate state;
// the caller folds the outcome in.
func (p *Processor) ProcessRecord(record *idoklad.Record, t idoklad.RecordType, state *State) (Outcome, error) {
	switch t {
	case idoklad.TypeInvoice, idoklad.TypeExpense:
	default:
		return Outcome{}, &idoklad.UnknownRecordTypeError{Type: string(t)}
	}

	p.Log.Infof("processing iDoklad %s %s", t, record.DocumentNumber)

	// Dedup on the number the record would get in Fakturoid; a match
	// means an earlier run already transferred it.
	number := destinationNumber(record, t)
	for _, existing := range *state.records(t) {
		if existing.Number == number {
			p.Log.Infof("%s %s already transferred, skipping", t, record.DocumentNumber)
			return Outcome{Status: StatusSkipped}, nil
		}
	}

	if !p.SkipVATCheck {
		recordVat := record.MyCompanyDocumentAddress.VatIdentificationNumber
		if state.Account.VatNo != recordVat {
			prompt := fmt.Sprintf(
				"WARNING: Your Fakturoid VAT number (%s) does not match the iDoklad %s (%s) VAT number (%s). You can change it in the web app.",
				state.Account.VatNo, t, record.DocumentNumber, recordVat,
			)
			if !p.Confirm(prompt) {
				p.Log.Warnf("VAT mismatch declined, aborting remaining %ss", t)
				return Outcome{Status: StatusAborted}, nil
			}
		}
	}

	if p.ExportPDF {
		p.Log.Infof("exporting %s %s as PDF", t, record.DocumentNumber)
		pdf, err := p.Source.GetPDF(t, record.ID)
		if err != nil {
			return Outcome{}, err
		}
		if err := exportPDF(p.ExportDir, t, record.DocumentNumber, pdf); err != nil {
			return Outcome{}, err
		}
	}

	attachment := ""
	if record.AttachmentFileName != "" {
		p.Log.Infof("loading attachment %s", record.AttachmentFileName)
		payload, err := p.Source.GetAttachment(t, record.ID)
		if err != nil {
			return Outcome{}, err
		}
		if payload != "" {
			attachment = MakeAttachment(payload)
		}
	}

	party := record.Party(t)
	var newSubject *fakturoid.Subject

	subjectID := FindSubjectID(state.Subjects, party)
	if subjectID == 0 {
		kind := "customer"
		if t == idoklad.TypeExpense {
			kind = "supplier"
		}

		created, err := p.Destination.CreateSubject(MakeSubject(party, kind))
		if err != nil {
			return Outcome{}, err
		}

		p.Log.Infof("created Fakturoid subject %s (%d)", created.Name, created.ID)
		subjectID = created.ID
		newSubject = &created
	}

	paymentMethod, err := FindPaymentMethod(record)
	if err != nil {
		return Outcome{}, err
	}

	bankAccountID := 0
	if paymentMethod == PaymentMethodBank {
		bankAccountID, err = FindBankAccountID(state.BankAccounts, record)
		if err != nil {
			return Outcome{}, err
		}
	}

	var createdRecord fakturoid.Record
	if t == idoklad.TypeInvoice {
		createdRecord, err = p.Destination.CreateInvoice(
			ConvertInvoice(record, subjectID, paymentMethod, attachment, bankAccountID),
		)
	} else {
		createdRecord, err = p.Destination.CreateExpense(
			ConvertExpense(record, subjectID, paymentMethod, attachment),
		)
	}
	if err != nil {
		return Outcome{}, err
	}

	p.Log.Infof("created Fakturoid %s %s", t, createdRecord.Number)

	if record.DateOfPayment != "" {
		if t == idoklad.TypeInvoice {
			err = p.Destination.PayInvoice(createdRecord.ID, record.DateOfPayment)
		} else {
			err = p.Destination.PayExpense(createdRecord.ID, record.DateOfPayment)
		}
		if err != nil {
			return Outcome{}, err
		}

		p.Log.Infof("paid Fakturoid %s %s", t, createdRecord.Number)
	}

	return Outcome{Status: StatusCreated, Record: createdRecord, NewSubject: newSubject}, nil
}

// destinationNumber is the number a source record maps to in
// Fakturoid, which is also the dedup key against existing records.
func destinationNumber(record *idoklad.Record, t idoklad.RecordType) string {
	if t == idoklad.TypeExpense {
		return ExpenseNumber(record.DocumentNumber)
	}
	return record.DocumentNumber
}
