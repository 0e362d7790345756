package extract

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const modelName = "gemini-2.5-pro"

// Agent wraps one adk llm agent with its runner and session service. Each
// Generate call gets a throwaway session so calls stay independent.
type Agent struct {
	name     string
	runner   *runner.Runner
	sessions session.Service
}

func NewAgent(apiKey, name, instruction string) (*Agent, error) {
	ctx := context.Background()
	model, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %v", err)
	}

	customAgent, err := llmagent.New(llmagent.Config{
		Name:        name,
		Model:       model,
		Description: "Extract structured hiring data",
		Instruction: instruction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %v", err)
	}

	sessions := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        name,
		Agent:          customAgent,
		SessionService: sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %v", err)
	}

	return &Agent{name: name, runner: r, sessions: sessions}, nil
}

// Generate sends msg to the model and returns the final text response.
func (a *Agent) Generate(ctx context.Context, userID, msg string) (string, error) {
	sessionID := uuid.NewString()
	agentSession, err := a.sessions.Create(ctx, &session.CreateRequest{
		AppName:   a.name,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer a.sessions.Delete(ctx, &session.DeleteRequest{
		AppName:   a.name,
		UserID:    agentSession.Session.UserID(),
		SessionID: agentSession.Session.ID(),
	})

	stream := a.runner.Run(ctx, agentSession.Session.UserID(), agentSession.Session.ID(), &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: msg},
		},
	}, agent.RunConfig{})

	var output string
	for event, err := range stream {
		if err != nil {
			return "", err
		}
		if event != nil && event.IsFinalResponse() && len(event.Content.Parts) > 0 {
			output = event.Content.Parts[0].Text
		}
	}

	if output == "" {
		return "", fmt.Errorf("empty agent response")
	}
	return output, nil
}
