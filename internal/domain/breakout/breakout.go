package breakout

import (
	"math"
	"time"

	"nifty-breakout/internal/domain/marketdata"
)

// DataSource 標示當次掃描使用的資料來源。
type DataSource string

const (
	SourceLive       DataSource = "live"
	SourceHistorical DataSource = "historical"
	SourceStale      DataSource = "stale"
)

// Baseline 為過去 N 個交易日（不含當日）的最高價與最大成交量。
type Baseline struct {
	Symbol       string
	MaxHigh5d    float64
	MaxVolume5d  int64
	PrevClose    float64 // 基準窗口中最近一日的收盤價
	Days         int     // 實際納入的交易日數，少於 5 代表資料稀疏
	ComputedDate time.Time
}

// Sparse 代表可用交易日不足完整窗口。
func (b Baseline) Sparse(lookback int) bool {
	return b.Days < lookback
}

// Decision 為單一股票的突破判斷結果。
type Decision struct {
	HighBreak          bool
	VolumeBreak        bool
	Triggered          bool
	HighBreakPercent   float64
	VolumeBreakPercent float64
}

// Evaluate 比較當日最高價、成交量與基準；必須價量同時突破才算觸發。
func Evaluate(todayHigh float64, todayVolume int64, b Baseline) Decision {
	d := Decision{
		HighBreak:   todayHigh > b.MaxHigh5d,
		VolumeBreak: todayVolume > b.MaxVolume5d,
	}
	d.Triggered = d.HighBreak && d.VolumeBreak
	d.HighBreakPercent = BreakPercent(todayHigh, b.MaxHigh5d)
	d.VolumeBreakPercent = BreakPercent(float64(todayVolume), float64(b.MaxVolume5d))
	return d
}

// BreakPercent 計算相對基準的百分比，四捨五入到小數兩位；基準 <= 0 時回傳 0。
func BreakPercent(today, ref float64) float64 {
	if ref <= 0 {
		return 0
	}
	return math.Floor((today-ref)/ref*10000+0.5) / 100
}

// ScanResult 為單一股票於單次掃描的結果。
type ScanResult struct {
	Symbol             string
	Name               string
	TodayHigh          float64
	TodayVolume        int64
	TodayClose         float64
	TodayChange        float64
	PrevMaxHigh        float64
	PrevMaxVolume      int64
	HighBreakPercent   float64
	VolumeBreakPercent float64
	HighBreak          bool
	VolumeBreak        bool
	Triggered          bool
	DataSource         DataSource
	ScannedAt          time.Time
	Skipped            bool
	Reason             string
}

// Skip 建立降級結果，不影響同批其他股票。
func Skip(symbol, name, reason string, at time.Time) ScanResult {
	return ScanResult{Symbol: symbol, Name: name, Skipped: true, Reason: reason, ScannedAt: at}
}

// Discovery 為指數成分股（非自選股）的突破分類。
// BaselineUnavailable 與 PossibleBreakout 互斥。
type Discovery struct {
	Symbol              string
	Name                string
	Breakout            bool
	HighBreak           bool
	VolumeBreak         bool
	HighBreakPercent    float64
	VolumeBreakPercent  float64
	BaselineUnavailable bool
	PossibleBreakout    bool
	Quote               marketdata.Quote
	Baseline            Baseline
}

// ClassifyDiscovery 依優先序分類：缺基準 > 快照過期 > 正常判斷。
func ClassifyDiscovery(q marketdata.Quote, b Baseline, hasBaseline, snapshotStale bool) Discovery {
	d := Discovery{Symbol: q.Symbol, Name: q.Name, Quote: q}
	switch {
	case !hasBaseline:
		d.BaselineUnavailable = true
	case snapshotStale:
		d.PossibleBreakout = true
		d.Baseline = b
	default:
		dec := Evaluate(q.DayHigh, q.TotalTradedVolume, b)
		d.Baseline = b
		d.HighBreak = dec.HighBreak
		d.VolumeBreak = dec.VolumeBreak
		d.Breakout = dec.Triggered
		d.HighBreakPercent = dec.HighBreakPercent
		d.VolumeBreakPercent = dec.VolumeBreakPercent
	}
	return d
}
