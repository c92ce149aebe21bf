package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"edgelab/internal/domain"
)

var tradeHeader = []string{
	"symbol",
	"strategy",
	"entry_date",
	"entry_price",
	"exit_date",
	"exit_price",
	"quantity",
	"pnl",
	"pnl_pct",
	"hold_days",
	"exit_reason",
}

// WriteTradesCSVFile writes trades to a CSV file at path.
func WriteTradesCSVFile(path string, trades []domain.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trades file: %w", err)
	}
	if err := WriteTradesCSV(f, trades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTradesCSV writes a header row and one row per trade. Dates use
// YYYY-MM-DD.
func WriteTradesCSV(w io.Writer, trades []domain.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, t := range trades {
		row := []string{
			t.Symbol,
			t.StrategyID,
			t.EntryDate.Format("2006-01-02"),
			strconv.FormatFloat(t.EntryPrice, 'f', 4, 64),
			t.ExitDate.Format("2006-01-02"),
			strconv.FormatFloat(t.ExitPrice, 'f', 4, 64),
			strconv.FormatFloat(t.Quantity, 'f', 6, 64),
			strconv.FormatFloat(t.PnL, 'f', 2, 64),
			strconv.FormatFloat(t.PnLPct, 'f', 4, 64),
			strconv.Itoa(t.HoldDays),
			string(t.ExitReason),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write trade %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
