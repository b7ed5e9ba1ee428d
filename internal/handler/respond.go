package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lgscvb/Brain-sub000/internal/errs"
)

// respondError maps a taxonomy kind to an HTTP status and writes the
// structured error body. Provider error text never reaches the caller;
// only the taxonomy message does.
func respondError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case errs.KindValidation:
		status = http.StatusBadRequest
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindConflict:
		status = http.StatusConflict
	case errs.KindGenerationFailed, errs.KindRefinementFailed:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"error_kind": string(kind),
		"message":    errs.MessageOf(err),
	})
}
