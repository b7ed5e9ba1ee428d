package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{
		Enabled:         true,
		Fast:            ModelRef{Provider: "anthropic", ModelID: "claude-3-5-haiku-latest"},
		Smart:           ModelRef{Provider: "anthropic", ModelID: "claude-sonnet-4-20250514"},
		SimpleKeywords:  []string{"租金", "地址", "營業時間", "你好"},
		ComplexKeywords: []string{"法律", "合約", "稅", "議價", "客訴"},
		FinancialTerms:  []string{"租金", "押金", "管理費"},
		MaxSimpleLength: 80,
	}
}

func TestRoute(t *testing.T) {
	cfg := testConfig()

	t.Run("simple price lookup goes fast", func(t *testing.T) {
		d := Route(cfg, Input{Content: "請問租金多少？"})
		assert.Equal(t, TierFast, d.Tier)
		assert.Equal(t, "anthropic", d.Provider)
		assert.Equal(t, "claude-3-5-haiku-latest", d.ModelID)
	})

	t.Run("legal keyword goes smart", func(t *testing.T) {
		d := Route(cfg, Input{Content: "合約到期後續約的法律問題"})
		assert.Equal(t, TierSmart, d.Tier)
	})

	t.Run("tax keyword goes smart", func(t *testing.T) {
		d := Route(cfg, Input{Content: "房東報稅需要提供什麼？"})
		assert.Equal(t, TierSmart, d.Tier)
	})

	t.Run("digits plus financial term goes smart", func(t *testing.T) {
		d := Route(cfg, Input{Content: "押金30000可以分期嗎"})
		assert.Equal(t, TierSmart, d.Tier)
	})

	t.Run("complex keyword wins over simple keyword", func(t *testing.T) {
		d := Route(cfg, Input{Content: "租金可以議價嗎"})
		assert.Equal(t, TierSmart, d.Tier)
	})

	t.Run("long message goes smart even with simple keyword", func(t *testing.T) {
		long := "你好"
		for len([]rune(long)) <= cfg.MaxSimpleLength {
			long += "這是一段很長的敘述"
		}
		d := Route(cfg, Input{Content: long})
		assert.Equal(t, TierSmart, d.Tier)
	})

	t.Run("no keyword match defaults to smart", func(t *testing.T) {
		d := Route(cfg, Input{Content: "嗯"})
		assert.Equal(t, TierSmart, d.Tier)
	})

	t.Run("long conversation escalates to smart", func(t *testing.T) {
		d := Route(cfg, Input{Content: "請問租金多少？", HistoryLength: 7})
		assert.Equal(t, TierSmart, d.Tier)
	})

	t.Run("short conversation stays fast", func(t *testing.T) {
		d := Route(cfg, Input{Content: "請問租金多少？", HistoryLength: 6})
		assert.Equal(t, TierFast, d.Tier)
	})

	t.Run("history threshold follows the config", func(t *testing.T) {
		strict := cfg
		strict.MaxHistoryLen = 2
		d := Route(strict, Input{Content: "請問租金多少？", HistoryLength: 3})
		assert.Equal(t, TierSmart, d.Tier)
	})

	t.Run("disabled routing forces smart", func(t *testing.T) {
		off := cfg
		off.Enabled = false
		d := Route(off, Input{Content: "請問租金多少？"})
		assert.Equal(t, TierSmart, d.Tier)
		assert.Equal(t, "claude-sonnet-4-20250514", d.ModelID)
	})

	t.Run("same input always routes the same way", func(t *testing.T) {
		first := Route(cfg, Input{Content: "請問地址在哪"})
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Route(cfg, Input{Content: "請問地址在哪"}))
		}
	})
}
