package marketdata

import (
	"testing"
	"time"
)

func TestCandleValidateSuccess(t *testing.T) {
	c := Candle{
		Symbol: "RELIANCE",
		Date:   time.Date(2024, 12, 2, 0, 0, 0, 0, IST),
		Open:   1300,
		High:   1315,
		Low:    1290,
		Close:  1302,
		Volume: 1000000,
	}

	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid candle, got error: %v", err)
	}
}

func TestCandleValidateErrors(t *testing.T) {
	c := Candle{
		Symbol: "",
		Date:   time.Time{},
		Open:   -1,
		High:   1,
		Low:    2,
		Close:  -2,
		Volume: -1,
	}

	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}

	if !IsValidationError(err) {
		t.Fatalf("expected validation error type, got %T", err)
	}
	ve := err.(*ValidationError)
	if len(ve.Reasons) != 6 {
		t.Fatalf("expected 6 reasons, got %d: %v", len(ve.Reasons), ve.Reasons)
	}
}

func TestSortCandlesAndLatest(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2024, 12, day, 0, 0, 0, 0, IST) }
	candles := []Candle{{Date: d(4), Close: 3}, {Date: d(2), Close: 1}, {Date: d(3), Close: 2}}

	SortCandles(candles)
	for i, want := range []float64{1, 2, 3} {
		if candles[i].Close != want {
			t.Fatalf("index %d: expected close %.0f, got %.0f", i, want, candles[i].Close)
		}
	}

	last, ok := Latest(candles)
	if !ok || last.Close != 3 {
		t.Fatalf("unexpected latest: %+v ok=%v", last, ok)
	}
	if _, ok := Latest(nil); ok {
		t.Fatalf("expected no latest for empty series")
	}
}
