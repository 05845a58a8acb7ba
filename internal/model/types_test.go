package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func alkRecord() PriceRecord {
	return PriceRecord{
		Date:          time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		LastPrice:     decimal.RequireFromString("1000"),
		MaxPrice:      decimal.RequireFromString("1050"),
		MinPrice:      decimal.RequireFromString("950"),
		AvgPrice:      decimal.RequireFromString("1010"),
		PercentChange: decimal.RequireFromString("2.5"),
		Quantity:      150,
		BestTurnover:  decimal.RequireFromString("145000"),
		TotalTurnover: decimal.RequireFromString("151500"),
		Code:          "ALK",
	}
}

func TestPriceRecord_IsNonTrading(t *testing.T) {
	tests := []struct {
		name     string
		quantity int64
		turnover string
		want     bool
	}{
		{"traded", 150, "151500", false},
		{"no quantity no turnover", 0, "0", true},
		{"quantity without turnover", 10, "0", false},
		{"turnover without quantity", 0, "100", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := alkRecord()
			r.Quantity = tt.quantity
			r.TotalTurnover = decimal.RequireFromString(tt.turnover)
			if got := r.IsNonTrading(); got != tt.want {
				t.Errorf("IsNonTrading() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPriceRecord_Args(t *testing.T) {
	r := alkRecord()
	args := r.Args()

	if len(args) != 10 {
		t.Fatalf("len(Args()) = %d, want 10", len(args))
	}
	if args[0] != "01012024" {
		t.Errorf("args[0] = %v, want 01012024", args[0])
	}
	if q, ok := args[6].(int64); !ok || q != 150 {
		t.Errorf("args[6] = %v, want int64 150", args[6])
	}
	if args[9] != "ALK" {
		t.Errorf("args[9] = %v, want ALK", args[9])
	}
	if d, ok := args[5].(decimal.Decimal); !ok || !d.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("args[5] = %v, want 2.5", args[5])
	}
}

func TestPriceRecord_Key(t *testing.T) {
	if got := alkRecord().Key(); got != "ALK/01012024" {
		t.Errorf("Key() = %q, want %q", got, "ALK/01012024")
	}
}

func TestFetchWindow(t *testing.T) {
	w := FetchWindow{
		Code: "ALK",
		From: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC),
	}

	form := w.FormValues()
	if form["FromDate"] != "01.01.2024" {
		t.Errorf("FromDate = %q, want 01.01.2024", form["FromDate"])
	}
	if form["ToDate"] != "31.12.2024" {
		t.Errorf("ToDate = %q, want 31.12.2024", form["ToDate"])
	}
	if form["Code"] != "ALK" {
		t.Errorf("Code = %q, want ALK", form["Code"])
	}

	if !w.Contains(w.From) || !w.Contains(w.To) {
		t.Error("window should contain its bounds")
	}
	if w.Contains(w.To.AddDate(0, 0, 1)) {
		t.Error("window should not contain the day after To")
	}
	if got := w.String(); got != "ALK 01.01.2024-31.12.2024" {
		t.Errorf("String() = %q", got)
	}
}
