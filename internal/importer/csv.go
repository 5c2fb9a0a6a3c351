// Package importer parses brokerage CSV exports into raw leg records. It owns
// the messy edge of the system: free-text sniffing for exercise/assignment
// legs happens here, once, and downstream code only ever sees the typed kind.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// expected CSV header, in order.
var header = []string{
	"date", "symbol", "strike", "expiry", "contract_type", "action",
	"position_effect", "quantity", "price", "fees", "amount", "name",
	"strategy", "trade_num",
}

const dateLayout = "2006-01-02"

// Importer reads leg CSV files and persists them through the store.
type Importer struct {
	store  ports.Store
	logger ports.Logger
}

// New creates a CSV leg importer.
func New(store ports.Store, logger ports.Logger) (*Importer, error) {
	if store == nil || logger == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for Importer", ports.ErrConfigurationError)
	}
	return &Importer{store: store, logger: logger}, nil
}

// ImportFile parses and persists every leg in the named CSV file and returns
// the trade numbers seen, in file order.
func (i *Importer) ImportFile(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open leg export %s: %w", path, err)
	}
	defer f.Close()
	return i.Import(ctx, f)
}

// Import parses and persists legs from r.
func (i *Importer) Import(ctx context.Context, r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if err := checkHeader(head); err != nil {
		return nil, err
	}

	var tradeNums []string
	seen := make(map[string]bool)
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		line++

		leg, err := parseLeg(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := i.store.Legs().Create(ctx, leg); err != nil {
			return nil, fmt.Errorf("line %d: failed to persist leg: %w", line, err)
		}
		if leg.TradeNum != "" && !seen[leg.TradeNum] {
			seen[leg.TradeNum] = true
			tradeNums = append(tradeNums, leg.TradeNum)
		}
	}

	i.logger.Info(ctx, "Leg export imported", map[string]interface{}{
		"legs":   line - 1,
		"trades": len(tradeNums),
	})
	return tradeNums, nil
}

func checkHeader(head []string) error {
	if len(head) != len(header) {
		return fmt.Errorf("%w: CSV header has %d columns, want %d", ports.ErrInvalidRequest, len(head), len(header))
	}
	for idx, want := range header {
		if strings.TrimSpace(strings.ToLower(head[idx])) != want {
			return fmt.Errorf("%w: CSV column %d is %q, want %q", ports.ErrInvalidRequest, idx, head[idx], want)
		}
	}
	return nil
}

func parseLeg(record []string) (*domain.Leg, error) {
	date, err := time.Parse(dateLayout, record[0])
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", record[0], err)
	}

	strike := decimal.Zero
	if record[2] != "" {
		if strike, err = decimal.NewFromString(record[2]); err != nil {
			return nil, fmt.Errorf("invalid strike %q: %w", record[2], err)
		}
	}

	var expiry time.Time
	if record[3] != "" {
		if expiry, err = time.Parse(dateLayout, record[3]); err != nil {
			return nil, fmt.Errorf("invalid expiry %q: %w", record[3], err)
		}
	}

	contract, err := parseContract(record[4])
	if err != nil {
		return nil, err
	}
	action, err := parseAction(record[5])
	if err != nil {
		return nil, err
	}
	effect, err := parseEffect(record[6])
	if err != nil {
		return nil, err
	}

	quantity, err := strconv.ParseInt(record[7], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %q: %w", record[7], err)
	}
	price, err := decimal.NewFromString(record[8])
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", record[8], err)
	}
	fees, err := decimal.NewFromString(record[9])
	if err != nil {
		return nil, fmt.Errorf("invalid fees %q: %w", record[9], err)
	}
	amount, err := decimal.NewFromString(record[10])
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", record[10], err)
	}

	name := strings.TrimSpace(record[11])
	return &domain.Leg{
		ExternalID: uuid.NewString(),
		Date:       date,
		Symbol:     strings.ToUpper(strings.TrimSpace(record[1])),
		Strike:     strike,
		Expiry:     expiry,
		Contract:   contract,
		Action:     action,
		Effect:     effect,
		Quantity:   quantity,
		Price:      price,
		Fees:       fees,
		Amount:     amount,
		Name:       name,
		Kind:       DetectKind(name),
		Strategy:   strings.TrimSpace(record[12]),
		TradeNum:   strings.TrimSpace(record[13]),
	}, nil
}

// DetectKind classifies a leg from its free-text description. Substring
// matching is confined to this one function so the rest of the system works
// off the typed kind.
func DetectKind(name string) domain.LegKind {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "exercise"):
		return domain.KindExercise
	case strings.Contains(lower, "assignment"):
		return domain.KindAssignment
	default:
		return domain.KindStandard
	}
}

func parseContract(s string) (domain.ContractType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "C":
		return domain.ContractCall, nil
	case "PUT", "P":
		return domain.ContractPut, nil
	case "STOCK", "EQUITY", "":
		return domain.ContractStock, nil
	}
	return "", fmt.Errorf("%w: unknown contract type %q", ports.ErrInvalidRequest, s)
}

func parseAction(s string) (domain.LegAction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "BUY_TO_OPEN", "BUY_TO_CLOSE":
		return domain.Buy, nil
	case "SELL", "SELL_TO_OPEN", "SELL_TO_CLOSE":
		return domain.Sell, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ports.ErrInvalidRequest, s)
}

func parseEffect(s string) (domain.PositionEffect, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPEN", "OPENING":
		return domain.EffectOpen, nil
	case "CLOSE", "CLOSING":
		return domain.EffectClose, nil
	}
	return "", fmt.Errorf("%w: unknown position effect %q", ports.ErrInvalidRequest, s)
}
