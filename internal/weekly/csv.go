package weekly

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gemex-ace/internal/types"
)

// WriteCSV writes one row per logged day plus a TOTAL row.
func WriteCSV(path string, logs []types.TradeLog) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"date", "status", "outcome", "entry_price", "exit_price", "pnl_pips", "pnl_usd", "method", "reason"}
	if err := w.Write(headers); err != nil {
		return err
	}

	var totalPips int
	var totalUSD float64
	for _, l := range logs {
		ex := l.Execution
		rec := []string{l.PlanID, string(ex.Status), string(ex.Outcome), "", "", "", "", ex.Method, ex.Reason}
		if ex.Filled() {
			rec[3] = fmt.Sprintf("%.5f", ex.EntryPrice)
			rec[4] = fmt.Sprintf("%.5f", ex.ExitPrice)
			rec[5] = strconv.Itoa(ex.PnLPips)
			rec[6] = fmt.Sprintf("%.2f", ex.PnLUSD)
			totalPips += ex.PnLPips
			totalUSD += ex.PnLUSD
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	if err := w.Write([]string{"TOTAL", "", "", "", "", strconv.Itoa(totalPips), fmt.Sprintf("%.2f", totalUSD), "", ""}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
