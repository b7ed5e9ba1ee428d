package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/knowledge"
	"github.com/lgscvb/Brain-sub000/internal/llm"
	"github.com/lgscvb/Brain-sub000/internal/models"
	"github.com/lgscvb/Brain-sub000/internal/repository"
)

// memStore is a single in-memory backing store shared by the fake
// repositories, so cross-aggregate rules (archived messages, cascades)
// behave like the real schema. The mutex stands in for the row locks the
// SQL repositories take, so concurrent service calls can be tested.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	messages  map[int64]*models.Message
	drafts    map[int64]*models.Draft
	rounds    map[int64][]*models.RefinementRound
	responses map[int64]*models.Response // keyed by message id
	events    map[int64][]*models.FeedbackEvent
	exports   []*models.TrainingExport
}

func newMemStore() *memStore {
	return &memStore{
		messages:  make(map[int64]*models.Message),
		drafts:    make(map[int64]*models.Draft),
		rounds:    make(map[int64][]*models.RefinementRound),
		responses: make(map[int64]*models.Response),
		events:    make(map[int64][]*models.FeedbackEvent),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) addMessage(content string) *models.Message {
	msg := &models.Message{
		ID:         s.id(),
		Sender:     "customer-1",
		Channel:    "line",
		Content:    content,
		Status:     models.MessageStatusPending,
		ReceivedAt: time.Now(),
		CreatedAt:  time.Now(),
	}
	s.messages[msg.ID] = msg
	return msg
}

func (s *memStore) addDraft(messageID int64, content string) *models.Draft {
	draft := &models.Draft{
		ID:        s.id(),
		MessageID: messageID,
		Content:   content,
		ModelTier: "smart",
		Provider:  "anthropic",
		ModelID:   "claude-sonnet-4-20250514",
		CreatedAt: time.Now(),
	}
	s.drafts[draft.ID] = draft
	if msg := s.messages[messageID]; msg != nil && msg.Status == models.MessageStatusPending {
		msg.Status = models.MessageStatusDrafted
	}
	return draft
}

type fakeMessageRepo struct{ s *memStore }

func (f *fakeMessageRepo) Save(msg *models.Message) error {
	msg.ID = f.s.id()
	msg.Status = models.MessageStatusPending
	msg.ReceivedAt = time.Now()
	msg.CreatedAt = time.Now()
	f.s.messages[msg.ID] = msg
	return nil
}

func (f *fakeMessageRepo) GetByID(id int64) (*models.Message, error) {
	msg, ok := f.s.messages[id]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "message not found")
	}
	return msg, nil
}

func (f *fakeMessageRepo) List(status string) ([]*models.Message, error) {
	var out []*models.Message
	for _, msg := range f.s.messages {
		if status == "" || msg.Status == status {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMessageRepo) CountBySender(sender string) (int, error) {
	count := 0
	for _, msg := range f.s.messages {
		if msg.Sender == sender {
			count++
		}
	}
	return count, nil
}

func (f *fakeMessageRepo) Archive(id int64) error {
	msg, ok := f.s.messages[id]
	if !ok {
		return errs.New(errs.KindNotFound, "message not found")
	}
	msg.Status = models.MessageStatusArchived
	return nil
}

type fakeDraftRepo struct{ s *memStore }

func (f *fakeDraftRepo) GetByID(id int64) (*models.Draft, error) {
	draft, ok := f.s.drafts[id]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "draft not found")
	}
	return draft, nil
}

func (f *fakeDraftRepo) GetCurrentByMessage(messageID int64) (*models.Draft, error) {
	for _, draft := range f.s.drafts {
		if draft.MessageID == messageID {
			return draft, nil
		}
	}
	return nil, nil
}

func (f *fakeDraftRepo) ReplaceCurrent(draft *models.Draft) error {
	msg, ok := f.s.messages[draft.MessageID]
	if !ok {
		return errs.New(errs.KindNotFound, "message not found")
	}
	if msg.Status == models.MessageStatusArchived {
		return errs.New(errs.KindConflict, "message is archived")
	}
	if msg.Status == models.MessageStatusSent {
		return errs.New(errs.KindConflict, "message already has a sent response")
	}
	for id, existing := range f.s.drafts {
		if existing.MessageID != draft.MessageID {
			continue
		}
		if len(f.s.rounds[id]) > 0 {
			return errs.New(errs.KindConflict, "draft has refinement history; archive the message before regenerating")
		}
		delete(f.s.drafts, id)
	}
	draft.ID = f.s.id()
	draft.CreatedAt = time.Now()
	f.s.drafts[draft.ID] = draft
	if msg.Status == models.MessageStatusPending {
		msg.Status = models.MessageStatusDrafted
	}
	return nil
}

func (f *fakeDraftRepo) UpdateFeedback(draftID int64, in models.FeedbackInput) (*models.Draft, error) {
	draft, ok := f.s.drafts[draftID]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "draft not found")
	}
	if msg := f.s.messages[draft.MessageID]; msg != nil && msg.Status == models.MessageStatusArchived {
		return nil, errs.New(errs.KindConflict, "message is archived")
	}
	if in.IsGood != nil {
		draft.IsGood = in.IsGood
	}
	if in.Rating != nil {
		draft.Rating = in.Rating
	}
	if in.FeedbackReason != nil {
		draft.FeedbackReason = in.FeedbackReason
	}
	f.s.events[draftID] = append(f.s.events[draftID], &models.FeedbackEvent{
		ID:             f.s.id(),
		DraftID:        draftID,
		IsGood:         in.IsGood,
		Rating:         in.Rating,
		FeedbackReason: in.FeedbackReason,
		CreatedAt:      time.Now(),
	})
	return draft, nil
}

func (f *fakeDraftRepo) ListFeedbackEvents(draftID int64) ([]*models.FeedbackEvent, error) {
	return f.s.events[draftID], nil
}

func (f *fakeDraftRepo) ListAllWithMessage() ([]*repository.DraftWithMessage, error) {
	var out []*repository.DraftWithMessage
	for _, draft := range f.s.drafts {
		msg := f.s.messages[draft.MessageID]
		out = append(out, &repository.DraftWithMessage{
			Draft:          *draft,
			MessageContent: msg.Content,
			MessageStatus:  msg.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeRoundRepo struct{ s *memStore }

func (f *fakeRoundRepo) Append(draftID int64, instruction, content string, suggestion *models.KnowledgeSuggestion) (*models.RefinementRound, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.drafts[draftID]; !ok {
		return nil, errs.New(errs.KindNotFound, "draft not found")
	}
	round := &models.RefinementRound{
		ID:          f.s.id(),
		DraftID:     draftID,
		RoundNumber: len(f.s.rounds[draftID]) + 1,
		Instruction: instruction,
		Content:     content,
		Status:      models.RoundPending,
		CreatedAt:   time.Now(),
	}
	if suggestion != nil {
		round.SuggestionContent = &suggestion.Content
		round.SuggestionCategory = &suggestion.Category
	}
	f.s.rounds[draftID] = append(f.s.rounds[draftID], round)
	return round, nil
}

func (f *fakeRoundRepo) Mark(roundID int64, status string) (*models.RefinementRound, error) {
	if status != models.RoundAccepted && status != models.RoundRejected {
		return nil, errs.New(errs.KindValidation, "status must be accepted or rejected")
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	round, err := f.find(roundID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	round.Status = status
	round.DecidedAt = &now
	return round, nil
}

func (f *fakeRoundRepo) GetByID(roundID int64) (*models.RefinementRound, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.find(roundID)
}

func (f *fakeRoundRepo) find(roundID int64) (*models.RefinementRound, error) {
	for _, rounds := range f.s.rounds {
		for _, round := range rounds {
			if round.ID == roundID {
				return round, nil
			}
		}
	}
	return nil, errs.New(errs.KindNotFound, "refinement round not found")
}

func (f *fakeRoundRepo) ListByDraft(draftID int64) ([]*models.RefinementRound, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.s.rounds[draftID], nil
}

func (f *fakeRoundRepo) CountByDraft(draftID int64) (int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return len(f.s.rounds[draftID]), nil
}

func (f *fakeRoundRepo) LastByDraft(draftID int64) (*models.RefinementRound, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	rounds := f.s.rounds[draftID]
	if len(rounds) == 0 {
		return nil, nil
	}
	return rounds[len(rounds)-1], nil
}

type fakeResponseRepo struct{ s *memStore }

func (f *fakeResponseRepo) Save(resp *models.Response) error {
	if _, exists := f.s.responses[resp.MessageID]; exists {
		return errs.New(errs.KindConflict, "message already has a sent response")
	}
	resp.ID = f.s.id()
	resp.SentAt = time.Now()
	f.s.responses[resp.MessageID] = resp
	if msg := f.s.messages[resp.MessageID]; msg != nil && msg.Status != models.MessageStatusArchived {
		msg.Status = models.MessageStatusSent
	}
	return nil
}

func (f *fakeResponseRepo) GetByMessage(messageID int64) (*models.Response, error) {
	resp, ok := f.s.responses[messageID]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "response not found")
	}
	return resp, nil
}

func (f *fakeResponseRepo) GetByDraft(draftID int64) (*models.Response, error) {
	for _, resp := range f.s.responses {
		if resp.DraftID == draftID {
			return resp, nil
		}
	}
	return nil, nil
}

func (f *fakeResponseRepo) ListWithMessages() ([]*repository.ResponseWithMessage, error) {
	var out []*repository.ResponseWithMessage
	for _, resp := range f.s.responses {
		msg := f.s.messages[resp.MessageID]
		out = append(out, &repository.ResponseWithMessage{
			Response:       *resp,
			MessageContent: msg.Content,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeResponseRepo) AdoptionStats() (int, int, error) {
	total, modified := 0, 0
	for _, resp := range f.s.responses {
		total++
		if resp.IsModified {
			modified++
		}
	}
	return total, modified, nil
}

type fakeExportRepo struct{ s *memStore }

func (f *fakeExportRepo) SaveManifest(m *models.TrainingExport) error {
	m.CreatedAt = time.Now()
	f.s.exports = append(f.s.exports, m)
	return nil
}

func (f *fakeExportRepo) GetManifest(id string) (*models.TrainingExport, error) {
	for _, m := range f.s.exports {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, errs.New(errs.KindNotFound, "export not found")
}

func (f *fakeExportRepo) ListRecent(limit int) ([]*models.TrainingExport, error) {
	out := make([]*models.TrainingExport, len(f.s.exports))
	copy(out, f.s.exports)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeExportRepo) CountByType() (map[string]int, error) {
	counts := make(map[string]int)
	for _, m := range f.s.exports {
		counts[m.ExportType]++
	}
	return counts, nil
}

// fakeInvoker answers by system instruction, so the refine call and the
// suggestion detector can be scripted independently.
type fakeInvoker struct {
	replies map[string]string
	err     error
}

func (f *fakeInvoker) Complete(ctx context.Context, system, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	if reply, ok := f.replies[system]; ok {
		return reply, nil
	}
	return "", errs.New(errs.KindInternal, "no scripted reply")
}

func (f *fakeInvoker) Close() error { return nil }

func (f *fakeInvoker) ModelInfo() map[string]interface{} {
	return map[string]interface{}{"provider": "fake", "model": "fake-model"}
}

type fakeInvokerSource struct {
	invoker llm.Invoker
	err     error
}

func (f *fakeInvokerSource) Invoker(tier string) (llm.Invoker, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.invoker, nil
}

type fakeSearcher struct {
	chunks []knowledge.Chunk
	err    error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]knowledge.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}
