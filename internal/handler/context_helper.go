package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trip-control-api/internal/middleware"
	"github.com/noah-isme/trip-control-api/internal/models"
	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// editorFromContext returns the identity stamped on runs and edits; ok is false without claims.
func editorFromContext(c *gin.Context) (models.Editor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Editor{}, false
	}
	editor := claims.Editor()
	if editor.Name == "" {
		editor.Name = editor.Email
	}
	return editor, true
}

func bindError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
