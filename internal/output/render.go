package output

import (
	"github.com/fatih/color"

	"github.com/altuslabsxyz/walletkit/internal/txpipe"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// RenderingRecord is the JSON form of one transaction rendering.
type RenderingRecord struct {
	Action string `json:"action"`
	txpipe.Rendering
}

// Rendering prints one transaction rendering. Intermediate phases print a
// single progress line; terminal phases print the receipts or the error.
func (l *Logger) Rendering(action string, r txpipe.Rendering) {
	if l.jsonMode {
		_ = l.JSON(RenderingRecord{Action: action, Rendering: r})
		return
	}

	switch r.Phase {
	case txpipe.PhaseBroadcast:
		l.Cyan("[%s] waiting for signature...", action)
	case txpipe.PhasePending:
		l.Cyan("[%s] broadcast, waiting for confirmation...", action)
		l.receipts(r.Receipts)
	case txpipe.PhaseSucceed:
		l.separator(color.FgGreen)
		l.Success("%s succeeded", action)
		l.receipts(r.Receipts)
		l.separator(color.FgGreen)
	case txpipe.PhaseFail:
		l.separator(color.FgRed)
		if r.Err != nil {
			l.Error("%s failed: %s", action, r.Err.Message)
			l.receipts(failureReceipts(r.Err))
		} else {
			l.Error("%s failed", action)
		}
		l.separator(color.FgRed)
	}
}

func failureReceipts(e *txpipe.TxError) []txpipe.Receipt {
	rs := []txpipe.Receipt{{Name: "Reason", Value: string(e.Reason)}}
	if e.TxHash != "" {
		rs = append(rs, txpipe.Receipt{Name: "Tx Hash", Value: e.TxHash})
	}
	if e.ErrorID != "" {
		rs = append(rs, txpipe.Receipt{Name: "Error ID", Value: e.ErrorID})
	}
	return rs
}

func (l *Logger) receipts(rs []txpipe.Receipt) {
	width := 0
	for _, r := range rs {
		if n := len([]rune(r.Name)); n > width {
			width = n
		}
	}
	for _, r := range rs {
		l.Info("  %s  %s", padRight(r.Name, width), r.Value)
	}
}

// StatusReport is a snapshot of the wallet connection.
type StatusReport struct {
	Status    wallet.Status        `json:"status"`
	Network   wallet.NetworkInfo   `json:"network"`
	Wallets   []wallet.WalletInfo  `json:"wallets"`
	Available []wallet.ConnectType `json:"availableConnectTypes"`
}

// Status prints a connection snapshot.
func (l *Logger) Status(s StatusReport) {
	if l.jsonMode {
		_ = l.JSON(s)
		return
	}

	switch s.Status {
	case wallet.StatusWalletConnected:
		l.Success("connected to %s (%s)", s.Network.Name, s.Network.ChainID)
	case wallet.StatusInitializing:
		l.Warn("session check still in progress")
	default:
		l.Info("not connected (%s, %s)", s.Network.Name, s.Network.ChainID)
	}

	for _, w := range s.Wallets {
		l.Info("  %s  %s", padRight(string(w.ConnectType), 9), w.Address)
	}

	if len(s.Available) > 0 {
		types := make([]string, len(s.Available))
		for i, t := range s.Available {
			types[i] = string(t)
		}
		l.Debug("available connect types: %v", types)
	}
}
