package transfer

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mdrbohlav/transfer-idoklad2fakturoid/idoklad"
)

// exportPDF writes a record's PDF rendering under
// <dir>/<invoices|expenses>/<number>.pdf, creating directories on
// demand.
func exportPDF(dir string, t idoklad.RecordType, number, base64Payload string) error {
	sub := "invoices"
	if t == idoklad.TypeExpense {
		sub = "expenses"
	}

	outDir := filepath.Join(dir, sub)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	data, err := base64.StdEncoding.DecodeString(base64Payload)
	if err != nil {
		return fmt.Errorf("decoding PDF for %s: %w", number, err)
	}

	return os.WriteFile(filepath.Join(outDir, number+".pdf"), data, 0644)
}
