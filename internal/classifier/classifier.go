// Package classifier turns message content into a taxonomy category plus
// candidate tasks. The AI path is wrapped by a deterministic keyword
// heuristic: classification always completes, it never aborts the pipeline.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"inboxpilot/internal/model"
	"inboxpilot/pkg/logger"
	"inboxpilot/pkg/metrics"
)

type TaskCandidate struct {
	Title       string
	Description string
	Priority    model.TaskPriority
	DueDate     *time.Time
}

// Result is always well-formed: a taxonomy category and a non-nil task list.
type Result struct {
	Category model.Category
	Tasks    []TaskCandidate
}

// AIClient is the per-org completion path; internal/ai.Client satisfies it.
type AIClient interface {
	Complete(ctx context.Context, orgID int64, operation, system, user string) (string, error)
}

type Engine struct {
	ai     AIClient
	logger *zap.Logger
}

func NewEngine(ai AIClient, log *zap.Logger) *Engine {
	return &Engine{ai: ai, logger: log}
}

const classifySystemPrompt = `You classify a single email into exactly one category:
task, fyi, question, approval, meeting.
You also extract actionable tasks when the email contains any.
Respond with a JSON object:
{"category": "...", "tasks": [{"title": "...", "description": "...", "priority": "high|medium|low", "due_date": "2006-01-02" or null}]}`

type aiClassification struct {
	Category string `json:"category"`
	Tasks    []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		DueDate     string `json:"due_date"`
	} `json:"tasks"`
}

// Classify is a total function: when no API key resolves for the org, the AI
// call fails, or the response is malformed, it degrades to the keyword
// heuristic rather than propagating the error.
func (e *Engine) Classify(ctx context.Context, orgID int64, subject, body string) Result {
	log := logger.WithTrace(ctx, e.logger)

	if e.ai != nil {
		result, err := e.classifyWithAI(ctx, orgID, subject, body)
		if err == nil {
			metrics.IncrementClassification("ai", string(result.Category))
			return result
		}
		log.Warn("AI classification failed, falling back to heuristic",
			zap.Int64("org_id", orgID),
			zap.Error(err),
		)
	}

	result := HeuristicClassify(subject, body)
	metrics.IncrementClassification("heuristic", string(result.Category))
	return result
}

func (e *Engine) classifyWithAI(ctx context.Context, orgID int64, subject, body string) (Result, error) {
	user := fmt.Sprintf("Subject: %s\n\n%s", subject, body)
	content, err := e.ai.Complete(ctx, orgID, "classify", classifySystemPrompt, user)
	if err != nil {
		return Result{}, err
	}

	var parsed aiClassification
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Result{}, fmt.Errorf("parse classification response: %w", err)
	}

	category := model.Category(parsed.Category)
	if !model.ValidCategory(category) {
		return Result{}, fmt.Errorf("classification returned unknown category %q", parsed.Category)
	}

	result := Result{Category: category, Tasks: []TaskCandidate{}}
	for _, t := range parsed.Tasks {
		if t.Title == "" {
			continue
		}
		candidate := TaskCandidate{
			Title:       t.Title,
			Description: t.Description,
			Priority:    parsePriority(t.Priority),
		}
		if t.DueDate != "" {
			if due, err := time.Parse("2006-01-02", t.DueDate); err == nil {
				candidate.DueDate = &due
			}
		}
		result.Tasks = append(result.Tasks, candidate)
	}
	return result, nil
}

func parsePriority(p string) model.TaskPriority {
	switch model.TaskPriority(p) {
	case model.TaskPriorityHigh, model.TaskPriorityMedium, model.TaskPriorityLow:
		return model.TaskPriority(p)
	}
	return model.TaskPriorityMedium
}
