package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
	"docqa/internal/service"
)

// Asker is the TUI-facing subset of the query service.
type Asker interface {
	Query(ctx context.Context, question, collection string) service.Payload
}

// answerMsg carries a finished query back into the update loop.
type answerMsg struct {
	question string
	payload  service.Payload
}

// Model is the Bubble Tea model for the interactive question prompt.
type Model struct {
	asker      Asker
	collection string
	timeout    time.Duration
	input      textinput.Model
	viewport   viewport.Model
	answer     string
	details    string
	locations  []domain.Location
	status     string
	cursor     int
	ready      bool
	busy       bool
	lastQuery  string
}

// New creates a model that asks questions against one collection.
func New(asker Asker, collection string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return Model{
		asker:      asker,
		collection: collection,
		timeout:    timeout,
		input:      ti,
		viewport:   viewport.New(0, 0),
		status:     "Ready. Up/Down cycles sources.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		return answerMsg{question: q, payload: m.asker.Query(ctx, q, m.collection)}
	}
}

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, collection, status, spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.render())
		return m, nil
	case answerMsg:
		m.busy = false
		m.apply(msg)
		m.viewport.SetContent(m.render())
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = fmt.Sprintf("Thinking about %q...", q)
				m.input.SetValue("")
				return m, m.ask(q)
			}
		case "down":
			if len(m.locations) > 0 {
				m.cursor = (m.cursor + 1) % len(m.locations)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		case "up":
			if len(m.locations) > 0 {
				m.cursor = (m.cursor - 1 + len(m.locations)) % len(m.locations)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) apply(msg answerMsg) {
	m.lastQuery = msg.question
	m.cursor = 0
	switch p := msg.payload.(type) {
	case service.AnswerPayload:
		m.answer = p.Answer
		m.locations = p.Locations
		m.details = fmt.Sprintf("%s query via %s | retrieval %.2fs rerank %.2fs generation %.2fs total %.2fs",
			p.QueryType, p.ModelUsed, p.RetrievalTime, p.RerankTime, p.GenerationTime, p.TotalTime)
		m.status = p.Summary
	case service.NoResultsPayload:
		m.answer = p.Answer
		m.locations = nil
		m.details = fmt.Sprintf("%s query | retrieval %.2fs", p.QueryType, p.RetrievalTime)
		m.status = p.Summary
	case service.ErrorPayload:
		m.answer = p.Answer
		m.locations = p.Locations
		m.details = ""
		m.status = "Error: " + p.Error
	default:
		m.answer, m.locations, m.details = "", nil, ""
		m.status = "Unexpected response"
	}
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Q&A")
	coll := dimStyle.Render("collection " + m.collection)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + coll + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) render() string {
	if m.answer == "" {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(m.answer)
	if m.details != "" {
		b.WriteString("\n\n" + dimStyle.Render(m.details))
	}
	if len(m.locations) == 0 {
		return b.String()
	}
	loc := m.locations[m.cursor]
	label := loc.Label
	if loc.HasTable {
		label += " (table)"
	}
	fmt.Fprintf(&b, "\n\nSource %d/%d  %s\n\n", m.cursor+1, len(m.locations), label)
	b.WriteString(highlightBestSentence(loc.FullText, m.lastQuery))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unicodeWordRe  = regexp.MustCompile(`[\p{L}\p{M}\p{N}]+(?:['’][\p{L}\p{M}]+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?।\n]+[.!?।]*`)
)

// highlightBestSentence styles the sentence sharing the most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	var sentences []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
