package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/knowledge"
	"github.com/lgscvb/Brain-sub000/internal/repository"
)

// KnowledgeHandler promotes facts surfaced during refinement into the
// external knowledge base.
type KnowledgeHandler struct {
	kb     *knowledge.Client
	rounds repository.RefinementRepository
	logger *zap.Logger
}

func NewKnowledgeHandler(kb *knowledge.Client, rounds repository.RefinementRepository, logger *zap.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{kb: kb, rounds: rounds, logger: logger}
}

func (h *KnowledgeHandler) PromoteFromRefinement(c *gin.Context) {
	var in knowledge.PromoteInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errs.New(errs.KindValidation, "malformed promotion payload"))
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		respondError(c, errs.New(errs.KindValidation, "content is required"))
		return
	}
	if in.RefinementID != nil {
		if _, err := h.rounds.GetByID(*in.RefinementID); err != nil {
			respondError(c, err)
			return
		}
	}

	record, err := h.kb.Promote(c.Request.Context(), in)
	if err != nil {
		h.logger.Error("promote knowledge", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}
