package detector

import (
	"fmt"

	"github.com/shopspring/decimal"

	"sjsage522/pricewatch/internal/money"
)

var hundred = decimal.NewFromInt(100)

// Render formats an alert as the chat message text
func Render(a Alert) string {
	switch a.Kind {
	case TargetReached:
		return fmt.Sprintf("🎯 Preço alvo atingido!\nBusca: %s\nPreço: R$ %s (≤ R$ %s)\nProduto: %s\n%s",
			a.Query, money.Format(a.NewPrice), money.Format(a.Target), a.Name, a.Location)
	case PriceDrop:
		return fmt.Sprintf("📉 Queda de preço!\nBusca: %s\nDe: R$ %s\nPara: R$ %s\nQueda: %s%%\nProduto: %s\n%s",
			a.Query, money.Format(a.OldPrice), money.Format(a.NewPrice),
			a.DropFraction.Mul(hundred).StringFixedBank(1), a.Name, a.Location)
	default:
		return fmt.Sprintf("%s\n%s", a.Name, a.Location)
	}
}

// RenderSummary formats the end-of-run message
func RenderSummary(checked, alerts int) string {
	return fmt.Sprintf("✅ Varredura finalizada.\nItens checados: %d\nAlertas enviados: %d", checked, alerts)
}
