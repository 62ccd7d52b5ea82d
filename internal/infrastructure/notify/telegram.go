package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	alertDomain "nifty-breakout/internal/domain/alert"
	"nifty-breakout/internal/domain/marketdata"

	"github.com/go-resty/resty/v2"
)

// TelegramClient 提供簡單的 sendMessage API 封裝。
type TelegramClient struct {
	token  string
	chatID int64
	prefix string
	client *resty.Client
}

func NewTelegramClient(token string, chatID int64, prefix string) *TelegramClient {
	return &TelegramClient{
		token:  token,
		chatID: chatID,
		prefix: prefix,
		client: resty.New().
			SetBaseURL("https://api.telegram.org").
			SetTimeout(10 * time.Second),
	}
}

// SendMessage 將文字訊息推送到指定 chat。
func (c *TelegramClient) SendMessage(ctx context.Context, text string) error {
	if c == nil {
		return fmt.Errorf("telegram client is nil")
	}
	if c.token == "" || c.chatID == 0 {
		return fmt.Errorf("telegram token or chat_id missing")
	}

	fullText := text
	if c.prefix != "" {
		fullText = fmt.Sprintf("[%s] %s", c.prefix, text)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"chat_id": c.chatID,
			"text":    fullText,
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", c.token))
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("telegram send failed status=%d body=%s", resp.StatusCode(), resp.String())
	}
	return nil
}

// NotifyAlert 推送新增的突破警報。
func (c *TelegramClient) NotifyAlert(ctx context.Context, a alertDomain.Alert) error {
	return c.SendMessage(ctx, FormatAlert(a))
}

// FormatAlert 將警報轉為通知文字。
func FormatAlert(a alertDomain.Alert) string {
	var b strings.Builder
	title := "自選股突破"
	if a.Type == alertDomain.TypeNifty50Breakout {
		title = "Nifty50 突破"
	}
	name := a.Symbol
	if a.Name != "" {
		name = fmt.Sprintf("%s (%s)", a.Symbol, a.Name)
	}
	fmt.Fprintf(&b, "%s: %s\n", title, name)
	fmt.Fprintf(&b, "High %.2f vs 5D %.2f (%+.2f%%)\n", a.TodayHigh, a.PrevMaxHigh, a.HighBreakPercent)
	fmt.Fprintf(&b, "Volume %d vs 5D %d (%+.2f%%)\n", a.TodayVolume, a.PrevMaxVolume, a.VolumeBreakPercent)
	fmt.Fprintf(&b, "Close %.2f (%+.2f)\n", a.TodayClose, a.TodayChange)
	b.WriteString(a.TriggeredAt.In(marketdata.IST).Format("2006-01-02 15:04 IST"))
	return b.String()
}
