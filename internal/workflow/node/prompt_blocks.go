package node

import (
	"fmt"
	"strings"

	wfmodel "roleplay-coach-api/internal/workflow/model"
)

const maxTranscriptLineRunes = 600

// BuildTranscriptBlock 将对话记录渲染为提示词片段
func BuildTranscriptBlock(lines []wfmodel.TranscriptLine, userLabel, aiLabel string) string {
	if len(lines) == 0 {
		return "（暂无对话）"
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		label := aiLabel
		if l.Sender == "user" {
			label = userLabel
		}
		out = append(out, label+"："+TruncateByRunes(text, maxTranscriptLineRunes))
	}
	if len(out) == 0 {
		return "（暂无对话）"
	}
	return strings.Join(out, "\n")
}

// BuildListBlock 渲染无序列表，空列表返回 fallback
func BuildListBlock(items []string, fallback string) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			lines = append(lines, "- "+s)
		}
	}
	if len(lines) == 0 {
		return fallback
	}
	return strings.Join(lines, "\n")
}

// DifficultyHint 难度等级对应的角色态度描述
func DifficultyHint(level int) string {
	switch level {
	case 1:
		return "配合度高，愿意倾听并很快接受合理建议"
	case 2:
		return "态度中立，需要对方给出清晰理由"
	case 3:
		return "有所保留，会提出质疑并坚持自己的观点"
	case 4:
		return "强烈抵触，情绪容易波动，只有真正被理解时才会松口"
	default:
		return fmt.Sprintf("难度 %d", level)
	}
}
