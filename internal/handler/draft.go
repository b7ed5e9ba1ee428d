package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/models"
	"github.com/lgscvb/Brain-sub000/internal/service"
)

// DraftHandler covers refinement, accept/reject bookkeeping and feedback
// on a draft.
type DraftHandler struct {
	refiner  *service.Refiner
	feedback *service.FeedbackCollector
	logger   *zap.Logger
}

func NewDraftHandler(refiner *service.Refiner, feedback *service.FeedbackCollector, logger *zap.Logger) *DraftHandler {
	return &DraftHandler{refiner: refiner, feedback: feedback, logger: logger}
}

func (h *DraftHandler) Refine(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var in models.RefineInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errs.New(errs.KindValidation, "instruction is required"))
		return
	}

	round, err := h.refiner.Refine(c.Request.Context(), id, in.Instruction)
	if err != nil {
		if errs.KindOf(err) == errs.KindInternal {
			h.logger.Error("refine draft", zap.Int64("draft_id", id), zap.Error(err))
		}
		respondError(c, err)
		return
	}

	body := gin.H{"round": round}
	if s := round.Suggestion(); s != nil {
		body["knowledge_suggestion"] = s
	}
	c.JSON(http.StatusCreated, body)
}

func (h *DraftHandler) ListRefinements(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	rounds, err := h.refiner.History(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rounds": rounds, "total": len(rounds)})
}

func (h *DraftHandler) AcceptRound(c *gin.Context) {
	h.mark(c, models.RoundAccepted)
}

func (h *DraftHandler) RejectRound(c *gin.Context) {
	h.mark(c, models.RoundRejected)
}

func (h *DraftHandler) mark(c *gin.Context, status string) {
	draftID, ok := pathID(c, "id")
	if !ok {
		return
	}
	roundID, ok := pathID(c, "round_id")
	if !ok {
		return
	}

	round, err := h.refiner.Mark(draftID, roundID, status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, round)
}

func (h *DraftHandler) SubmitFeedback(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var in models.FeedbackInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errs.New(errs.KindValidation, "malformed feedback payload"))
		return
	}

	draft, err := h.feedback.Submit(id, in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, draft)
}

func (h *DraftHandler) FeedbackHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	events, err := h.feedback.History(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "total": len(events)})
}

// WorkingContent is the "use this version" read: the content the agent's
// reply buffer should show, optionally pinned to a historical round.
func (h *DraftHandler) WorkingContent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var roundID *int64
	if raw := c.Query("round_id"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			respondError(c, errs.New(errs.KindValidation, "invalid round_id"))
			return
		}
		roundID = &n
	}

	content, err := h.refiner.WorkingContent(id, roundID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"draft_id": id, "content": content})
}
