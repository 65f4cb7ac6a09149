package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/paud-api/internal/models"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
	"github.com/noah-isme/paud-api/pkg/response"
)

type rosterImporter interface {
	ImportUpload(ctx context.Context, actorID, filename string, r io.Reader) (*models.ImportReport, error)
}

// RosterHandler accepts roster CSV uploads.
type RosterHandler struct {
	importer rosterImporter
}

// NewRosterHandler constructs RosterHandler.
func NewRosterHandler(importer rosterImporter) *RosterHandler {
	return &RosterHandler{importer: importer}
}

// Import godoc
// @Summary Import a student roster
// @Description Rows are imported independently; failed rows are listed in errors without stopping the run.
// @Tags Rosters
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Roster CSV"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /rosters/import [post]
func (h *RosterHandler) Import(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cannot read upload"))
		return
	}
	defer file.Close()

	report, err := h.importer.ImportUpload(c.Request.Context(), actorID(c), header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, map[string]interface{}{
		"succeeded": report.SuccessCount,
		"failed":    len(report.Errors),
	})
}
