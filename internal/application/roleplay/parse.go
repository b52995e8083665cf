package roleplay

import (
	"encoding/json"
	"fmt"
	"strings"

	wfmodel "roleplay-coach-api/internal/workflow/model"
	wfnode "roleplay-coach-api/internal/workflow/node"
)

var knownEmotions = map[string]struct{}{
	"neutral":   {},
	"happy":     {},
	"sad":       {},
	"angry":     {},
	"surprised": {},
	"anxious":   {},
	"confused":  {},
}

// ParsePersonaReply 从模型输出解析角色回复；输出不是 JSON 时整段作为回复文本
func ParsePersonaReply(rawText string) (*wfmodel.PersonaReply, error) {
	raw := strings.TrimSpace(rawText)
	if raw == "" {
		return nil, fmt.Errorf("empty persona reply")
	}

	var reply wfmodel.PersonaReply
	jsonText := wfnode.ExtractJSONObject(raw)
	if err := json.Unmarshal([]byte(jsonText), &reply); err != nil || strings.TrimSpace(reply.Message) == "" {
		reply = wfmodel.PersonaReply{Message: raw}
	}

	reply.Message = strings.TrimSpace(reply.Message)
	reply.Emotion = strings.ToLower(strings.TrimSpace(reply.Emotion))
	if _, ok := knownEmotions[reply.Emotion]; !ok {
		reply.Emotion = "neutral"
	}
	reply.EmotionReason = strings.TrimSpace(reply.EmotionReason)
	return &reply, nil
}

// ParseFeedbackReport 解析反馈报告，并返回截取后的 JSON 文本
func ParseFeedbackReport(rawText string) (*wfmodel.FeedbackReport, string, error) {
	jsonText := wfnode.ExtractJSONObject(rawText)
	if strings.TrimSpace(jsonText) == "" {
		return nil, jsonText, fmt.Errorf("empty feedback output")
	}

	var report wfmodel.FeedbackReport
	if err := json.Unmarshal([]byte(jsonText), &report); err != nil {
		return nil, jsonText, fmt.Errorf("failed to parse feedback json: %w", err)
	}
	if len(report.Scores) == 0 {
		return nil, jsonText, fmt.Errorf("feedback has no scores")
	}

	report.OverallScore = clampScore(report.OverallScore)
	for i := range report.Scores {
		report.Scores[i].Score = clampScore(report.Scores[i].Score)
	}
	return &report, jsonText, nil
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
