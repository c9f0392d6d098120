package domain

import (
	"context"
	"strings"
)

// Invoker executes a tool with already validated arguments and returns
// the textual result handed back to the model.
type Invoker func(ctx context.Context, args map[string]any) (string, error)

// ToolDescriptor is the admission-time description of one callable tool.
type ToolDescriptor struct {
	Name         string
	Description  string
	Domain       string
	RequiredRole string
	// Core tools bypass semantic ranking and are always present.
	Core        bool
	InputSchema map[string]any
}

// EmbedText is the string embedded to represent the tool in similarity
// space.
func (t ToolDescriptor) EmbedText() string {
	if t.Description == "" {
		return t.Name
	}
	return t.Name + ": " + t.Description
}

// SkillDescriptor describes an instructional skill surfaced alongside
// tools when its description matches the query.
type SkillDescriptor struct {
	Name         string
	Description  string
	Domain       string
	RequiredRole string
	Keywords     []string
	Instructions string
}

func (s SkillDescriptor) EmbedText() string {
	parts := make([]string, 0, 3)
	if s.Name != "" {
		parts = append(parts, s.Name)
	}
	if s.Description != "" {
		parts = append(parts, s.Description)
	}
	if len(s.Keywords) > 0 {
		parts = append(parts, strings.Join(s.Keywords, " "))
	}
	return strings.Join(parts, ": ")
}
