package transfer

import "fmt"

// UnknownPaymentMethodError means a source record carries a payment
// option code outside the mapping table. This points at a data problem
// upstream, so it ends the run.
type UnknownPaymentMethodError struct {
	Code           string
	DocumentNumber string
}

func (e *UnknownPaymentMethodError) Error() string {
	return fmt.Sprintf("Unknown iDoklad payment method code: %s, record number: %s", e.Code, e.DocumentNumber)
}

// BankAccountNotFoundError means a bank-transfer record references an
// account that does not exist in Fakturoid. Bank accounts are never
// auto-created, so this ends the run.
type BankAccountNotFoundError struct {
	Account        string
	DocumentNumber string
}

func (e *BankAccountNotFoundError) Error() string {
	return fmt.Sprintf("Unknown iDoklad bank account: %s, record number: %s", e.Account, e.DocumentNumber)
}
