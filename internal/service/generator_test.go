package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/knowledge"
	"github.com/lgscvb/Brain-sub000/internal/models"
	"github.com/lgscvb/Brain-sub000/internal/router"
)

func testRouting() router.Config {
	return router.Config{
		Enabled:         true,
		Fast:            router.ModelRef{Provider: "anthropic", ModelID: "claude-3-5-haiku-latest"},
		Smart:           router.ModelRef{Provider: "anthropic", ModelID: "claude-sonnet-4-20250514"},
		SimpleKeywords:  []string{"租金", "地址"},
		ComplexKeywords: []string{"法律", "合約", "稅"},
		FinancialTerms:  []string{"押金"},
		MaxSimpleLength: 80,
	}
}

func newTestGenerator(s *memStore, invoker *fakeInvoker, kb KnowledgeSearcher) *Generator {
	return NewGenerator(
		&fakeMessageRepo{s}, &fakeDraftRepo{s},
		&fakeInvokerSource{invoker: invoker}, kb,
		testRouting(), 3, 5*time.Second, zap.NewNop(),
	)
}

func TestGenerate(t *testing.T) {
	t.Run("parses reply and strategy sections", func(t *testing.T) {
		s := newMemStore()
		msg := s.addMessage("請問租金多少？")
		invoker := &fakeInvoker{replies: map[string]string{
			DraftSystemInstruction: "Reply:\n您好，這間的月租金是 25,000 元。\n\nStrategy:\n直接回答價格並保持禮貌。",
		}}
		g := newTestGenerator(s, invoker, &fakeSearcher{})

		draft, err := g.Generate(context.Background(), msg.ID)
		require.NoError(t, err)
		assert.Equal(t, "您好，這間的月租金是 25,000 元。", draft.Content)
		assert.Equal(t, "直接回答價格並保持禮貌。", draft.Strategy)
		assert.Equal(t, router.TierFast, draft.ModelTier)
		assert.Equal(t, models.MessageStatusDrafted, s.messages[msg.ID].Status)
	})

	t.Run("complex message routes to smart tier", func(t *testing.T) {
		s := newMemStore()
		msg := s.addMessage("合約提前解約有什麼法律責任？")
		invoker := &fakeInvoker{replies: map[string]string{
			DraftSystemInstruction: "Reply:\n這部分建議讓我們的專員與您詳談。\n\nStrategy:\n法律問題升級處理。",
		}}
		g := newTestGenerator(s, invoker, &fakeSearcher{})

		draft, err := g.Generate(context.Background(), msg.ID)
		require.NoError(t, err)
		assert.Equal(t, router.TierSmart, draft.ModelTier)
		assert.Equal(t, "claude-sonnet-4-20250514", draft.ModelID)
	})

	t.Run("whole answer is kept when model ignores the format", func(t *testing.T) {
		s := newMemStore()
		msg := s.addMessage("請問地址在哪")
		invoker := &fakeInvoker{replies: map[string]string{
			DraftSystemInstruction: "我們的門市在台北市信義路 100 號。\n",
		}}
		g := newTestGenerator(s, invoker, &fakeSearcher{})

		draft, err := g.Generate(context.Background(), msg.ID)
		require.NoError(t, err)
		assert.Equal(t, "我們的門市在台北市信義路 100 號。", draft.Content)
		assert.Empty(t, draft.Strategy)
	})

	t.Run("archived message is a conflict", func(t *testing.T) {
		s := newMemStore()
		msg := s.addMessage("請問租金多少？")
		msg.Status = models.MessageStatusArchived
		g := newTestGenerator(s, &fakeInvoker{}, &fakeSearcher{})

		_, err := g.Generate(context.Background(), msg.ID)
		assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	})

	t.Run("unknown message is not found", func(t *testing.T) {
		s := newMemStore()
		g := newTestGenerator(s, &fakeInvoker{}, &fakeSearcher{})

		_, err := g.Generate(context.Background(), 42)
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	})

	t.Run("model failure persists nothing", func(t *testing.T) {
		s := newMemStore()
		msg := s.addMessage("請問租金多少？")
		invoker := &fakeInvoker{err: errors.New("429 too many requests")}
		g := newTestGenerator(s, invoker, &fakeSearcher{})

		_, err := g.Generate(context.Background(), msg.ID)
		assert.Equal(t, errs.KindGenerationFailed, errs.KindOf(err))
		assert.Empty(t, s.drafts)
		assert.Equal(t, models.MessageStatusPending, s.messages[msg.ID].Status)
	})

	t.Run("empty model answer is a generation failure", func(t *testing.T) {
		s := newMemStore()
		msg := s.addMessage("請問租金多少？")
		invoker := &fakeInvoker{replies: map[string]string{DraftSystemInstruction: "  \n\n "}}
		g := newTestGenerator(s, invoker, &fakeSearcher{})

		_, err := g.Generate(context.Background(), msg.ID)
		assert.Equal(t, errs.KindGenerationFailed, errs.KindOf(err))
		assert.Empty(t, s.drafts)
	})

	t.Run("knowledge lookup failure degrades instead of blocking", func(t *testing.T) {
		s := newMemStore()
		msg := s.addMessage("請問租金多少？")
		invoker := &fakeInvoker{replies: map[string]string{
			DraftSystemInstruction: "Reply:\n月租金是 25,000 元。\n\nStrategy:\n直接回覆。",
		}}
		g := newTestGenerator(s, invoker, &fakeSearcher{err: errors.New("kb down")})

		draft, err := g.Generate(context.Background(), msg.ID)
		require.NoError(t, err)
		assert.Equal(t, "月租金是 25,000 元。", draft.Content)
	})

	t.Run("regenerate replaces a draft without history", func(t *testing.T) {
		s := newMemStore()
		msg := s.addMessage("請問租金多少？")
		old := s.addDraft(msg.ID, "舊草稿")
		invoker := &fakeInvoker{replies: map[string]string{
			DraftSystemInstruction: "Reply:\n新草稿\n\nStrategy:\n重寫。",
		}}
		g := newTestGenerator(s, invoker, &fakeSearcher{})

		draft, err := g.Generate(context.Background(), msg.ID)
		require.NoError(t, err)
		assert.NotEqual(t, old.ID, draft.ID)
		assert.Len(t, s.drafts, 1)
		assert.Equal(t, "新草稿", s.drafts[draft.ID].Content)
	})

	t.Run("regenerate over refinement history is rejected and leaves rounds untouched", func(t *testing.T) {
		s := newMemStore()
		msg := s.addMessage("請問租金多少？")
		draft := s.addDraft(msg.ID, "原始草稿")
		rounds := &fakeRoundRepo{s}
		round, err := rounds.Append(draft.ID, "語氣更正式", "修訂後草稿", nil)
		require.NoError(t, err)

		invoker := &fakeInvoker{replies: map[string]string{
			DraftSystemInstruction: "Reply:\n新草稿\n\nStrategy:\n重寫。",
		}}
		g := newTestGenerator(s, invoker, &fakeSearcher{})

		_, err = g.Generate(context.Background(), msg.ID)
		assert.Equal(t, errs.KindConflict, errs.KindOf(err))
		assert.Equal(t, "原始草稿", s.drafts[draft.ID].Content)
		require.Len(t, s.rounds[draft.ID], 1)
		assert.Equal(t, round.ID, s.rounds[draft.ID][0].ID)
		assert.Equal(t, "修訂後草稿", s.rounds[draft.ID][0].Content)
	})

	t.Run("regenerate after send is rejected", func(t *testing.T) {
		s := newMemStore()
		msg := s.addMessage("請問租金多少？")
		draft := s.addDraft(msg.ID, "草稿")
		(&fakeResponseRepo{s}).Save(&models.Response{MessageID: msg.ID, DraftID: draft.ID, FinalContent: "草稿"})
		invoker := &fakeInvoker{replies: map[string]string{
			DraftSystemInstruction: "Reply:\n新草稿\n\nStrategy:\n重寫。",
		}}
		g := newTestGenerator(s, invoker, &fakeSearcher{})

		_, err := g.Generate(context.Background(), msg.ID)
		assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	})

	t.Run("knowledge snippets reach the prompt", func(t *testing.T) {
		prompt := BuildDraftPrompt("請問租金多少？", []knowledge.Chunk{
			{Content: "A棟月租金 25,000 元", Score: 0.91},
		})
		assert.Contains(t, prompt, "A棟月租金 25,000 元")
		assert.Contains(t, prompt, "請問租金多少？")
	})
}
