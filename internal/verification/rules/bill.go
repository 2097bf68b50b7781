package rules

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/docverify/docverify-backend/internal/verification/domain"
)

// totalTolerance absorbs rounding in printed totals
const totalTolerance = 0.01

var (
	totalKeys    = []string{"total_amount", "total", "grand_total"}
	itemListKeys = []string{"items", "line_items"}
	amountRe     = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)
)

// VerifyBillTotal compares a bill's stated total with the sum of its line
// items. A line contributes its amount (or total) when present, otherwise
// price times quantity.
func VerifyBillTotal(fm *domain.FieldMap) *domain.BillVerification {
	v := &domain.BillVerification{}

	stated, ok := firstAmount(fm, totalKeys)
	if !ok {
		v.Error = "no stated total found"
		return v
	}

	items, ok := firstList(fm, itemListKeys)
	if !ok || len(items) == 0 {
		v.Error = "no line items found"
		return v
	}

	var sum float64
	for _, item := range items {
		line, ok := item.(map[string]any)
		if !ok {
			continue
		}
		sum += lineTotal(line)
	}

	v.Success = true
	v.StatedTotal = round2(stated)
	v.CalculatedTotal = round2(sum)
	v.Discrepancy = round2(math.Abs(stated - sum))
	v.IsTotalCorrect = math.Abs(stated-sum) <= totalTolerance
	return v
}

func lineTotal(line map[string]any) float64 {
	for _, key := range []string{"amount", "total"} {
		if v, ok := line[key]; ok {
			if amount, ok := parseAmount(v); ok {
				return amount
			}
		}
	}

	price, ok := parseAmount(line["price"])
	if !ok {
		return 0
	}
	qty := 1.0
	for _, key := range []string{"quantity", "qty"} {
		if q, ok := parseAmount(line[key]); ok {
			qty = q
			break
		}
	}
	return price * qty
}

func firstAmount(fm *domain.FieldMap, keys []string) (float64, bool) {
	for _, key := range keys {
		if v, ok := fm.Get(key); ok {
			if amount, ok := parseAmount(v); ok {
				return amount, true
			}
		}
	}
	return 0, false
}

func firstList(fm *domain.FieldMap, keys []string) ([]any, bool) {
	for _, key := range keys {
		if v, ok := fm.Get(key); ok {
			if list, ok := v.([]any); ok {
				return list, true
			}
		}
	}
	return nil, false
}

// parseAmount accepts numbers and currency strings such as "Rs. 1,234.50"
func parseAmount(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		m := amountRe.FindString(val)
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
