package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	tgmodels "github.com/go-telegram/bot/models"

	apperrors "github.com/region23/tablebook/pkg/errors"
	"github.com/region23/tablebook/pkg/logger"
)

const webhookTimeout = 30 * time.Second

type linkTokenRequest struct {
	AdminID string `json:"admin_id" binding:"required"`
}

type languageRequest struct {
	Language string `json:"language" binding:"required"`
}

// handleWebhook обрабатывает Telegram webhook
func (s *Server) handleWebhook(c *gin.Context) {
	start := time.Now()

	var update tgmodels.Update
	if err := json.NewDecoder(c.Request.Body).Decode(&update); err != nil {
		s.securityLogger.LogValidationError(c.Request, "failed to decode telegram update")
		s.respondError(c, apperrors.Validation("malformed telegram update"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), webhookTimeout)
	defer cancel()

	s.deps.Dispatcher.HandleUpdate(ctx, &update)

	s.securityLogger.LogTelegramUpdate(&update, time.Since(start))
	c.Status(http.StatusOK)
}

func (s *Server) handleLinkToken(c *gin.Context) {
	var req linkTokenRequest
	if !s.bindJSON(c, &req) {
		return
	}
	// При включенной аутентификации токен выдается только самому администратору
	claims, ok := callerClaims(c)
	if s.auth.Enabled() && (!ok || claims.AdminID == "") {
		s.securityLogger.LogFailedAuth(c.Request, "link token requested without admin identity")
		s.respondError(c, apperrors.ErrUnauthorized)
		return
	}
	if ok && claims.AdminID != "" && claims.AdminID != req.AdminID {
		s.respondError(c, apperrors.ErrForbidden.WithContext(map[string]string{"admin_id": req.AdminID}))
		return
	}

	token, err := s.deps.Bot.GenerateLinkToken(c.Request.Context(), req.AdminID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, token)
}

func (s *Server) handleGetLanguage(c *gin.Context) {
	chatID, err := parseChatID(c.Param("chat_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	lang, err := s.deps.Bot.Language(c.Request.Context(), chatID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "language": lang})
}

func (s *Server) handleSetLanguage(c *gin.Context) {
	chatID, err := parseChatID(c.Param("chat_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req languageRequest
	if !s.bindJSON(c, &req) {
		return
	}

	if err := s.deps.Bot.SetLanguage(c.Request.Context(), chatID, req.Language); err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.Info("Admin language changed via API",
		logger.Int64("chat_id", chatID),
		logger.String("language", req.Language))
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "language": req.Language})
}

func parseChatID(raw string) (int64, error) {
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || chatID == 0 {
		return 0, apperrors.Validation("chat_id must be a non-zero integer")
	}
	return chatID, nil
}
