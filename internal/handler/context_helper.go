package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/interview-slots/internal/middleware"
	"github.com/noah-isme/interview-slots/internal/models"
	appErrors "github.com/noah-isme/interview-slots/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextCandidateKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func candidateFromContext(c *gin.Context) (int64, error) {
	claims := claimsFromContext(c)
	if claims == nil || claims.CandidateID <= 0 {
		return 0, appErrors.ErrUnauthorized
	}
	return claims.CandidateID, nil
}

func int64Param(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" must be a positive integer")
	}
	return id, nil
}
