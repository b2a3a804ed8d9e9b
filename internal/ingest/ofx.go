package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/fernwick/ledgerloom/internal/model"
)

// OFXReader implements OFX/QFX charge file parsing.
type OFXReader struct{}

// NewOFXReader creates a new OFX reader.
func NewOFXReader() *OFXReader {
	return &OFXReader{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (r *OFXReader) preprocessOFX(content string) string {
	// Trim any leading whitespace or blank lines before the header
	content = strings.TrimLeft(content, " \t\r\n")

	// Fix mixed-case SEVERITY values (should be INFO, WARN, or ERROR)
	severityRegex := regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	content = severityRegex.ReplaceAllStringFunc(content, func(match string) string {
		return strings.ToUpper(match)
	})

	// Fix missing closing angle brackets in SGML-style OFX files
	tagFixRegex := regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// ParseFile parses an OFX/QFX file and returns normalized charge records.
func (r *OFXReader) ParseFile(ctx context.Context, reader io.Reader) ([]model.ChargeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(r.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var records []model.ChargeRecord
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			if stmt.BankTranList == nil {
				continue
			}
			for _, ofxTx := range stmt.BankTranList.Transactions {
				records = append(records, r.convertTransaction(ofxTx))
			}
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			if stmt.BankTranList == nil {
				continue
			}
			for _, ofxTx := range stmt.BankTranList.Transactions {
				records = append(records, r.convertTransaction(ofxTx))
			}
		}
	}

	records = Dedupe(records)
	slog.Info("Parsed OFX file",
		"records", len(records),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)
	return records, nil
}

// convertTransaction converts an OFX transaction to a charge record. OFX
// already signs amounts the way we store them: debits negative, credits
// positive.
func (r *OFXReader) convertTransaction(ofxTx ofxgo.Transaction) model.ChargeRecord {
	rec := model.ChargeRecord{
		Date:        ofxTx.DtPosted.Time,
		ID:          string(ofxTx.FiTID),
		Merchant:    r.extractMerchantName(ofxTx),
		Memo:        string(ofxTx.Memo),
		AmountMinor: ratToMinor(&ofxTx.TrnAmt.Rat),
	}
	rec.Direction = detectDirection(rec.AmountMinor, rec.Merchant, rec.Memo)
	rec.Hash = rec.GenerateHash()
	return rec
}

// ratToMinor converts an OFX decimal amount to minor units, rounding half
// away from zero on the rare sub-cent values.
func ratToMinor(amt *big.Rat) int64 {
	cents := new(big.Rat).Mul(amt, big.NewRat(100, 1))
	num := new(big.Int).Mul(cents.Num(), big.NewInt(2))
	den := new(big.Int).Mul(cents.Denom(), big.NewInt(2))
	if num.Sign() >= 0 {
		num.Add(num, cents.Denom())
	} else {
		num.Sub(num, cents.Denom())
	}
	return new(big.Int).Quo(num, den).Int64()
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (r *OFXReader) extractMerchantName(tx ofxgo.Transaction) string {
	// Prefer PAYEE if available (cleaner merchant name)
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)

	// Use MEMO field if NAME is generic
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}

	name = strings.TrimSpace(name)

	// Remove common prefixes
	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Clean up date patterns like "MM/DD" at the beginning
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	generic := []string{
		"DEBIT",
		"CREDIT",
		"PURCHASE",
		"PAYMENT",
		"POS TRANSACTION",
		"CARD PURCHASE",
	}

	upperName := strings.ToUpper(name)
	for _, g := range generic {
		if upperName == g {
			return true
		}
	}
	return false
}
