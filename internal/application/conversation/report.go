package conversation

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"

	"roleplay-coach-api/internal/domain/entity"
)

var reportTemplate = template.Must(template.New("feedback-report").Parse(`<!DOCTYPE html>
<html lang="zh-CN">
<head>
  <meta charset="utf-8">
  <title>对话反馈报告 - {{.PersonaName}}</title>
  <style>
    body { font-family: sans-serif; max-width: 860px; margin: 2em auto; color: #222; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; }
    .score { font-size: 2em; font-weight: bold; }
    @media print { body { margin: 0; } }
  </style>
</head>
<body>
  <h1>对话反馈报告</h1>
  <p>角色：{{.PersonaName}}</p>
  <p>场景：{{.ScenarioTitle}}</p>
  <p>生成时间：{{.GeneratedAt}}</p>
  <p class="score">{{.OverallScore}} / 100</p>
{{- if .Scores}}
  <h2>分项评分</h2>
  <table>
    <tr><th>维度</th><th>得分</th><th>评价</th></tr>
{{- range .Scores}}
    <tr><td>{{with .Icon}}<span class="icon">{{.}}</span> {{end}}{{.Name}}</td><td>{{.Score}}</td><td>{{.Feedback}}</td></tr>
{{- end}}
  </table>
{{- end}}
{{- range .Sections}}
  <h2>{{.Title}}</h2>
  <ul>
{{- range .Items}}
    <li>{{.}}</li>
{{- end}}
  </ul>
{{- end}}
{{- if .SequenceAnalysis}}
  <h2>对话顺序分析</h2>
  <p>{{.SequenceAnalysis}}</p>
{{- end}}
{{- if .StrategyAnalysis}}
  <h2>策略分析</h2>
  <p>{{.StrategyAnalysis}}</p>
{{- end}}
{{- with .TimeStatistics}}
  <h2>用时统计</h2>
  <p>总时长 {{.TotalSeconds}} 秒，共 {{.TurnCount}} 轮，平均回复 {{printf "%.1f" .AverageResponseSeconds}} 秒</p>
{{- end}}
</body>
</html>
`))

type reportSection struct {
	Title string
	Items []string
}

type reportData struct {
	PersonaName      string
	ScenarioTitle    string
	GeneratedAt      string
	OverallScore     int
	Scores           []entity.ScoreItem
	Sections         []reportSection
	SequenceAnalysis string
	StrategyAnalysis string
	TimeStatistics   *entity.TimeStatistics
}

// ReportOpener 打开可打印的报告页面，例如浏览器或系统打印
type ReportOpener interface {
	OpenReport(ctx context.Context, name string, content []byte) error
}

// ReportFilename 下载报告时使用的文件名
func (c *FeedbackCoordinator) ReportFilename() string {
	return fmt.Sprintf("feedback-%s.html", c.run.ID)
}

// RenderReport 渲染已就绪的报告，所有文本字段均做 HTML 转义
func (c *FeedbackCoordinator) RenderReport() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.DownloadReport(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DownloadReport 将报告写入 w
func (c *FeedbackCoordinator) DownloadReport(w io.Writer) error {
	c.mu.Lock()
	fb := c.feedback
	ready := c.state == Ready
	c.mu.Unlock()
	if !ready || fb == nil {
		return ErrFeedbackNotReady
	}
	if err := reportTemplate.Execute(w, c.reportData(fb)); err != nil {
		return fmt.Errorf("render feedback report: %w", err)
	}
	return nil
}

// PrintReport 交给 opener 打开打印视图
func (c *FeedbackCoordinator) PrintReport(ctx context.Context, opener ReportOpener) error {
	content, err := c.RenderReport()
	if err != nil {
		return err
	}
	return opener.OpenReport(ctx, c.ReportFilename(), content)
}

func (c *FeedbackCoordinator) reportData(fb *Feedback) reportData {
	vm := BuildViewModel(c.run, c.scenarioRun, nil)
	d := fb.DetailedFeedback
	sections := []reportSection{
		{Title: "优势", Items: d.Strengths},
		{Title: "待改进", Items: d.Improvements},
		{Title: "下一步", Items: d.NextSteps},
		{Title: "行为建议", Items: d.BehaviorGuides},
		{Title: "沟通建议", Items: d.ConversationGuides},
		{Title: "短期计划", Items: d.DevelopmentPlan.ShortTerm},
		{Title: "中期计划", Items: d.DevelopmentPlan.MediumTerm},
		{Title: "长期计划", Items: d.DevelopmentPlan.LongTerm},
	}
	nonEmpty := sections[:0]
	for _, s := range sections {
		if len(s.Items) > 0 {
			nonEmpty = append(nonEmpty, s)
		}
	}

	generatedAt := ""
	if !fb.CreatedAt.IsZero() {
		generatedAt = fb.CreatedAt.UTC().Format("2006-01-02 15:04 MST")
	}
	return reportData{
		PersonaName:      vm.Persona.Name,
		ScenarioTitle:    vm.Scenario.Title,
		GeneratedAt:      generatedAt,
		OverallScore:     fb.OverallScore,
		Scores:           fb.Scores,
		Sections:         nonEmpty,
		SequenceAnalysis: d.SequenceAnalysis,
		StrategyAnalysis: d.StrategyAnalysis,
		TimeStatistics:   d.TimeStatistics,
	}
}
