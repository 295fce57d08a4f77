package project_test

import (
	"strings"
	"testing"

	"github.com/felixgeelhaar/pulse/internal/domain/project"
)

func TestSystemConfigConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  *project.SystemConfig
		want bool
	}{
		{"nil block", nil, false},
		{"empty block", &project.SystemConfig{}, false},
		{"missing url", &project.SystemConfig{Source: "JIRA"}, false},
		{"source and url", &project.SystemConfig{Source: "JIRA", URL: "http://jira.local"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDocumentID(t *testing.T) {
	p := &project.Project{Name: "demo"}
	if p.DocumentID() != "demo" {
		t.Errorf("expected name as document id, got %q", p.DocumentID())
	}
	p.ID = "abc-123"
	if p.DocumentID() != "abc-123" {
		t.Errorf("expected explicit id to win, got %q", p.DocumentID())
	}
}

func TestWorstRag(t *testing.T) {
	tests := []struct {
		name       string
		indicators []project.Indicator
		want       string
	}{
		{"no indicators", nil, project.RagGreen},
		{"all green", []project.Indicator{{RagStatus: project.RagGreen}}, project.RagGreen},
		{"amber beats green", []project.Indicator{
			{RagStatus: project.RagGreen}, {RagStatus: project.RagAmber},
		}, project.RagAmber},
		{"red beats everything", []project.Indicator{
			{RagStatus: project.RagAmber}, {RagStatus: project.RagRed}, {RagStatus: project.RagGreen},
		}, project.RagRed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := project.WorstRag(tt.indicators); got != tt.want {
				t.Errorf("WorstRag() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid project", func(t *testing.T) {
		p := &project.Project{
			Name: "demo",
			Demand: &project.SystemConfig{
				Source:  "JIRA",
				URL:     "http://jira.local/rest/api/2",
				Project: "DEMO",
			},
		}
		if err := p.Validate(); err != nil {
			t.Errorf("expected valid project, got %v", err)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		p := &project.Project{}
		err := p.Validate()
		if err == nil {
			t.Fatal("expected validation error for missing name")
		}
		if !strings.Contains(err.Error(), "invalid") {
			t.Errorf("unexpected error text: %v", err)
		}
	})

	t.Run("source without project", func(t *testing.T) {
		p := &project.Project{
			Name:   "demo",
			Demand: &project.SystemConfig{Source: "JIRA", URL: "http://jira.local"},
		}
		if err := p.Validate(); err == nil {
			t.Error("expected validation error: source requires url and project")
		}
	})
}
