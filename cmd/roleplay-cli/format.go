package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"roleplay-coach-api/internal/application/conversation"
	"roleplay-coach-api/internal/domain/entity"
)

var (
	accent = lipgloss.Color("#01cdfe")
	mint   = lipgloss.Color("#05ffa1")
	pink   = lipgloss.Color("#ff71ce")
	muted  = lipgloss.Color("#9ca3d8")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle   = lipgloss.NewStyle().Foreground(muted)
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(mint)
	personaStyle = lipgloss.NewStyle().Bold(true).Foreground(pink)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff5555"))
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
)

func renderView(v conversation.ViewModel) string {
	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render(v.Scenario.Title))
	if v.Scenario.Description != "" {
		fmt.Fprintln(&b, v.Scenario.Description)
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("objectives:"), strings.Join(v.Scenario.Objectives, "; "))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("timeline:"), v.Scenario.Timeline)
	fmt.Fprintf(&b, "%s %s", labelStyle.Render("persona:"), personaStyle.Render(v.Persona.Name))
	if v.Persona.MBTI != "" {
		fmt.Fprintf(&b, " (%s)", v.Persona.MBTI)
	}
	if len(v.Persona.Traits) > 0 {
		fmt.Fprintf(&b, " %s", strings.Join(v.Persona.Traits, ", "))
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "%s %s  %s %s  %s %d  %s %d",
		labelStyle.Render("run:"), v.Run.ID,
		labelStyle.Render("status:"), v.Run.Status,
		labelStyle.Render("turns:"), v.Run.TurnCount,
		labelStyle.Render("difficulty:"), v.Run.Difficulty)
	return panelStyle.Render(b.String())
}

func renderMessage(personaName string, m conversation.ChatMessage) string {
	if m.Sender == entity.SenderUser {
		return userStyle.Render("you") + ": " + m.Message
	}
	line := personaStyle.Render(personaName) + ": " + m.Message
	if m.Emotion != "" {
		line += " " + labelStyle.Render("["+m.Emotion+"]")
	}
	return line
}

func renderFeedback(snap conversation.FeedbackSnapshot) string {
	switch snap.State {
	case conversation.Ready:
	case conversation.Errored, conversation.NoFeedback:
		if snap.Failure != nil {
			return errorStyle.Render(snap.Failure.Message) + " " + labelStyle.Render("("+string(snap.Failure.Action)+")")
		}
		return labelStyle.Render("No feedback yet. Run with --generate to create it.")
	default:
		return labelStyle.Render("Feedback: " + snap.State.String())
	}

	fb := snap.Feedback
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n", titleStyle.Render("Overall score:"), fb.OverallScore)
	for _, s := range fb.Scores {
		name := s.Name
		if s.Icon != "" {
			name = s.Icon + " " + name
		}
		fmt.Fprintf(&b, "  %-22s %3d  %s\n", name, s.Score, s.Feedback)
	}
	d := fb.DetailedFeedback
	writeList(&b, "Strengths", d.Strengths)
	writeList(&b, "Improvements", d.Improvements)
	writeList(&b, "Next steps", d.NextSteps)
	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(b, titleStyle.Render(title))
	for _, it := range items {
		fmt.Fprintf(b, "  - %s\n", it)
	}
}

func writeConversationTable(w io.Writer, items []conversation.ConversationSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPERSONA\tSTATUS\tMODE\tTURNS\tUPDATED")
	for _, c := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			c.ID, c.PersonaName, c.Status, c.Mode, c.TurnCount, c.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
