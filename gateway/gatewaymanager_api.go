package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/scrtlabs/secret-ai-hub/event"
	"github.com/scrtlabs/secret-ai-hub/gateway/segment"
)

func addAPIHandlers(gm *GatewayManager) {
	// Protected with API key authentication (production only)
	apiGroup := gm.ginEngine.Group("/api", gm.apiKeyAuth())
	{
		apiGroup.GET("/chat", gm.chatHandler)
		apiGroup.GET("/chat/history/:session_id", gm.chatHistoryHandler)
		apiGroup.POST("/improve-prompt", gm.improvePromptHandler)
		apiGroup.GET("/models", gm.listModelsHandler)
		apiGroup.GET("/health", gm.healthHandler)
		apiGroup.GET("/version", gm.apiGetVersion)
		apiGroup.GET("/events", gm.apiSendEvents)
		apiGroup.GET("/activity/prompts", gm.apiGetActivityPrompts)
		apiGroup.POST("/config/reload", gm.apiReloadConfig)
	}
}

// chatHandler resolves the model, replays the session transcript, invokes
// the upstream once and appends the new turns. Nothing is written to the
// session until the upstream call has succeeded.
func (gm *GatewayManager) chatHandler(c *gin.Context) {
	prompt := strings.TrimSpace(c.Query("prompt"))
	if prompt == "" {
		gm.sendErrorResponse(c, http.StatusUnprocessableEntity, "prompt is required")
		return
	}

	modelID := strings.TrimSpace(c.Query("model"))
	if modelID == "" {
		modelID = ModelDeepseek
	}

	registry := gm.getRegistry()
	desc, err := registry.Resolve(modelID)
	if err != nil {
		gm.sendErrorResponse(c, http.StatusNotFound, fmt.Sprintf("Error processing chat request: %s", err.Error()))
		return
	}

	credential := normalizeCredential(c.GetHeader("X-API-Key"))
	if credential == "" {
		credential = gm.getConfig().APIKey
	}
	sessionID := DeriveSessionKey(credential)

	history := gm.sessions.Get(sessionID)

	messages := make([]ChatMessage, 0, len(history)+2)
	seedSystemTurn := len(history) == 0
	if seedSystemTurn {
		messages = append(messages, ChatMessage{Role: RoleSystem, Content: chatSystemPrompt})
	}
	for _, turn := range history {
		messages = append(messages, ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, ChatMessage{Role: RoleUser, Content: prompt})

	endpoint, err := registry.ResolveEndpoint(c.Request.Context(), modelID)
	if err != nil {
		gm.sendErrorResponse(c, http.StatusInternalServerError, fmt.Sprintf("Error processing chat request: %s", err.Error()))
		return
	}

	raw, err := gm.getSecretClient().Invoke(c.Request.Context(), endpoint, desc.UpstreamModelName(), messages, desc.RecommendedTemperature)
	if err != nil {
		// session left unmodified; failed calls are all-or-nothing
		gm.logger.Errorf("chat upstream call failed for model %s: %v", modelID, err)
		gm.sendErrorResponse(c, http.StatusInternalServerError, fmt.Sprintf("Error processing chat request: %s", err.Error()))
		return
	}

	seg := segment.Split(raw)

	newTurns := make([]Turn, 0, 3)
	if seedSystemTurn {
		newTurns = append(newTurns, NewTurn(RoleSystem, chatSystemPrompt))
	}
	newTurns = append(newTurns, NewTurn(RoleUser, prompt), NewTurn(RoleAssistant, raw))
	gm.sessions.Append(sessionID, newTurns...)

	gm.recordActivityPreview(modelID, sessionID, prompt, len(history)+len(newTurns), c.Request.Header)
	event.Emit(ChatCompletedEvent{
		Model:        modelID,
		SessionID:    sessionID,
		HasReasoning: seg.HasReasoning(),
	})

	// the multimodal variant never exposes segmentation
	if desc.Multimodal || !seg.HasReasoning() {
		c.JSON(http.StatusOK, gin.H{
			"model":      modelID,
			"response":   seg.Answer,
			"session_id": sessionID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model":      modelID,
		"reasoning":  *seg.Reasoning,
		"answer":     seg.Answer,
		"session_id": sessionID,
	})
}

func (gm *GatewayManager) chatHistoryHandler(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))

	turns := gm.sessions.Get(sessionID)
	history := make([]gin.H, 0, len(turns))
	for _, turn := range turns {
		history = append(history, gin.H{
			"role":      turn.Role,
			"content":   turn.Content,
			"timestamp": turn.Timestamp,
		})
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

// improvePromptHandler is the stateless variant of chat: no session
// interaction, always the text model at an elevated temperature.
func (gm *GatewayManager) improvePromptHandler(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		gm.sendErrorResponse(c, http.StatusBadRequest, "could not read request body")
		return
	}

	body, err := decodeRequestByContentEncoding(rawBody, c.Request.Header.Get("Content-Encoding"))
	if err != nil {
		gm.sendErrorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid compressed request body: %s", err.Error()))
		return
	}

	prompt := strings.TrimSpace(gjson.GetBytes(body, "prompt").String())
	if prompt == "" {
		gm.sendErrorResponse(c, http.StatusUnprocessableEntity, "prompt is required")
		return
	}

	registry := gm.getRegistry()
	desc, err := registry.Resolve(ModelDeepseek)
	if err != nil {
		gm.sendErrorResponse(c, http.StatusInternalServerError, fmt.Sprintf("Error improving prompt: %s", err.Error()))
		return
	}

	endpoint, err := registry.ResolveEndpoint(c.Request.Context(), ModelDeepseek)
	if err != nil {
		gm.sendErrorResponse(c, http.StatusInternalServerError, fmt.Sprintf("Error improving prompt: %s", err.Error()))
		return
	}

	messages := []ChatMessage{
		{Role: RoleSystem, Content: promptImproverSystemPrompt},
		{Role: RoleUser, Content: buildImprovementInstruction(prompt)},
	}

	raw, err := gm.getSecretClient().Invoke(c.Request.Context(), endpoint, desc.UpstreamModelName(), messages, improveTemperature)
	if err != nil {
		gm.logger.Errorf("prompt improvement upstream call failed: %v", err)
		gm.sendErrorResponse(c, http.StatusInternalServerError, fmt.Sprintf("Error improving prompt: %s", err.Error()))
		return
	}

	seg := segment.Split(raw)

	if seg.HasReasoning() {
		c.JSON(http.StatusOK, gin.H{
			"original_prompt": prompt,
			"reasoning":       *seg.Reasoning,
			"improved_prompt": seg.Answer,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"original_prompt": prompt,
		"improved_prompt": seg.Answer,
	})
}

func (gm *GatewayManager) listModelsHandler(c *gin.Context) {
	registry := gm.getRegistry()

	ids, err := registry.AvailableModels(c.Request.Context())
	if err != nil {
		// upstream listing is advisory here; fall back to the catalog
		gm.logger.Warnf("model listing fell back to static catalog: %v", err)
		ids = registry.CatalogIDs()
	}

	details := gin.H{}
	for _, id := range ids {
		if desc, err := registry.Resolve(id); err == nil {
			details[id] = desc
		} else {
			details[id] = gin.H{}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"models":        ids,
		"model_details": details,
	})
}

func (gm *GatewayManager) healthHandler(c *gin.Context) {
	ids, err := gm.getRegistry().AvailableModels(c.Request.Context())
	if err != nil {
		event.Emit(UpstreamStateChangeEvent{Connected: false})
		gm.sendErrorResponse(c, http.StatusServiceUnavailable, gin.H{
			"status":                    "unhealthy",
			"error":                     err.Error(),
			"secret_network_connection": "disconnected",
		})
		return
	}

	event.Emit(UpstreamStateChangeEvent{Connected: true, AvailableModels: len(ids)})
	c.JSON(http.StatusOK, gin.H{
		"status":                    "healthy",
		"secret_network_connection": "connected",
		"available_models":          len(ids),
		"api_version":               apiVersion,
	})
}

func (gm *GatewayManager) apiGetVersion(c *gin.Context) {
	gm.Lock()
	defer gm.Unlock()
	c.JSON(http.StatusOK, map[string]string{
		"version":    gm.version,
		"commit":     gm.commit,
		"build_date": gm.buildDate,
	})
}

func (gm *GatewayManager) apiGetActivityPrompts(c *gin.Context) {
	c.JSON(http.StatusOK, gm.getActivityPromptPreviews())
}

func (gm *GatewayManager) apiReloadConfig(c *gin.Context) {
	if err := gm.reloadConfigFromDisk(); err != nil {
		gm.sendErrorResponse(c, http.StatusInternalServerError, "failed to reload config: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok", "detail": "config reloaded"})
}

type messageType string

const (
	msgTypeChatActivity   messageType = "chatActivity"
	msgTypeUpstreamStatus messageType = "upstreamStatus"
	msgTypeConfigReload   messageType = "configReload"
)

type messageEnvelope struct {
	Type messageType `json:"type"`
	Data string      `json:"data"`
}

// sends a stream of different message types that happen on the gateway
func (gm *GatewayManager) apiSendEvents(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Content-Type-Options", "nosniff")
	// prevent nginx from buffering SSE
	c.Header("X-Accel-Buffering", "no")

	sendBuffer := make(chan messageEnvelope, 25)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	send := func(msgType messageType, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		select {
		case sendBuffer <- messageEnvelope{Type: msgType, Data: string(data)}:
		case <-ctx.Done():
		default:
		}
	}

	defer event.On(func(e ChatCompletedEvent) {
		send(msgTypeChatActivity, e)
	})()
	defer event.On(func(e UpstreamStateChangeEvent) {
		send(msgTypeUpstreamStatus, e)
	})()
	defer event.On(func(e ConfigReloadedEvent) {
		send(msgTypeConfigReload, e)
	})()

	// send initial batch of data
	send(msgTypeChatActivity, gm.getActivityPromptPreviews())

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-gm.shutdownCtx.Done():
			return
		case msg := <-sendBuffer:
			c.SSEvent("message", msg)
			c.Writer.Flush()
		}
	}
}
