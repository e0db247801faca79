package store

import (
	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/calibration"
	"github.com/abhisek/gauge/internal/placement"
)

// The store is the single implementation of every persistence boundary.
var (
	_ placement.SessionStore     = (*Store)(nil)
	_ placement.Tx               = (*sessionTx)(nil)
	_ bank.ImportSink            = (*Store)(nil)
	_ calibration.ItemLister     = (*Store)(nil)
	_ calibration.ResponseSource = (*Store)(nil)
	_ calibration.ReportStore    = (*Store)(nil)
	_ calibration.MetricsStore   = (*Store)(nil)
	_ calibration.LedgerStore    = (*Store)(nil)
	_ calibration.LedgerTx       = (*ledgerTx)(nil)
)
