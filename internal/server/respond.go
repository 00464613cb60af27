package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/region23/tablebook/internal/validation"
	apperrors "github.com/region23/tablebook/pkg/errors"
	"github.com/region23/tablebook/pkg/logger"
	"github.com/region23/tablebook/pkg/metrics"
)

// errorBody описывает JSON ответа с ошибкой
type errorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Context interface{} `json:"context,omitempty"`
}

// respondError пишет доменную ошибку в ответ. Текст upstream ошибок
// уходит только в лог.
func (s *Server) respondError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Upstream(err)
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.String("code", appErr.Code),
			logger.Error(err))
		metrics.RecordError("http", appErr.Code)
		c.AbortWithStatusJSON(status, gin.H{"error": errorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
		}})
		return
	}

	s.logger.Debug("Request rejected",
		logger.String("path", c.FullPath()),
		logger.String("code", appErr.Code))
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{
		Code:    appErr.Code,
		Message: appErr.Message,
		Context: appErr.Context,
	}})
}

// bindJSON разбирает тело запроса и при ошибке отвечает 400
func (s *Server) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.securityLogger.LogValidationError(c.Request, err.Error())
		s.respondError(c, validation.TranslateError(err))
		return false
	}
	return true
}

// bindQuery разбирает параметры строки запроса
func (s *Server) bindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		s.securityLogger.LogValidationError(c.Request, err.Error())
		s.respondError(c, validation.TranslateError(err))
		return false
	}
	return true
}
