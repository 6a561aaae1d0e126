package gateway

import (
	"net/http"
	"strings"
	"time"
)

const maxActivityPreviews = 200

// ActivityPromptPreview is one recent chat interaction, kept in memory for
// operator visibility only.
type ActivityPromptPreview struct {
	ID            int    `json:"id"`
	Timestamp     string `json:"timestamp"`
	Model         string `json:"model"`
	SessionID     string `json:"session_id"`
	PromptPreview string `json:"prompt_preview"`
	TurnCount     int    `json:"turn_count"`
	UserAgent     string `json:"user_agent"`
}

func (gm *GatewayManager) recordActivityPreview(modelID, sessionID, prompt string, turnCount int, headers http.Header) {
	gm.Lock()
	defer gm.Unlock()

	gm.activityNextPromptID++
	gm.activityPromptPreviews = append(gm.activityPromptPreviews, ActivityPromptPreview{
		ID:            gm.activityNextPromptID,
		Timestamp:     time.Now().Format(time.RFC3339),
		Model:         strings.TrimSpace(modelID),
		SessionID:     sessionID,
		PromptPreview: trimPreview(prompt, 180),
		TurnCount:     turnCount,
		UserAgent:     trimPreview(strings.TrimSpace(headers.Get("User-Agent")), 180),
	})

	if len(gm.activityPromptPreviews) > maxActivityPreviews {
		gm.activityPromptPreviews = gm.activityPromptPreviews[len(gm.activityPromptPreviews)-maxActivityPreviews:]
	}
}

func (gm *GatewayManager) getActivityPromptPreviews() []ActivityPromptPreview {
	gm.Lock()
	defer gm.Unlock()
	out := make([]ActivityPromptPreview, len(gm.activityPromptPreviews))
	copy(out, gm.activityPromptPreviews)
	return out
}

func trimPreview(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + " ..."
}
