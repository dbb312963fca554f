package notifier

import (
	"fmt"
	"strings"
	"time"

	"cfd-signals/internal/engine"
	"cfd-signals/internal/sizing"
)

// FormatSignal renders the alert message sent to the channel: levels,
// sizing, and the full rationale behind the entry.
func FormatSignal(sig *engine.Signal, plan sizing.PositionPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[SIGNAL %s]\n", sig.Side)
	fmt.Fprintf(&b, "Symbol: %s\n", sig.Symbol)
	fmt.Fprintf(&b, "Entry: %.5f\n", sig.EntryPrice)
	fmt.Fprintf(&b, "StopLoss: %.5f\n", sig.StopLoss)
	fmt.Fprintf(&b, "TakeProfit: %.5f\n", sig.TakeProfit)
	fmt.Fprintf(&b, "RR: %.2f\n", sig.RiskRewardRatio)
	if plan.SizeUnits > 0 {
		fmt.Fprintf(&b, "Size: %.2f\n", plan.SizeUnits)
		fmt.Fprintf(&b, "Risk: %.2f (%.2f%%)\n", plan.RiskAmount, plan.RiskPct*100)
	}
	if atrPct, ok := sig.Metrics["atr_pct"]; ok {
		fmt.Fprintf(&b, "ATR%%: %.3f\n", atrPct*100)
	}
	if vr, ok := sig.Metrics["volume_ratio"]; ok && vr > 0 {
		fmt.Fprintf(&b, "VolumeRatio: %.2f\n", vr)
	}
	fmt.Fprintf(&b, "Why: %s\n", sig.Rationale())
	fmt.Fprintf(&b, "Time: %s", sig.Timestamp.Format(time.RFC3339))
	return b.String()
}
