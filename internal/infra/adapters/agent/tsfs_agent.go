package agent

import (
	"context"
	"fmt"
	"path/filepath"

	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/model"
	"ai-agent-backend/internal/domain/ports/adapter"
)

const TSFSAgentID = "ts_fs_agent"

const tsfsSystemPrompt = "You are an expert SAP ABAP Technical Architect. " +
	"Generate a comprehensive Technical Specification (TS) for the given ABAP code.\n" +
	"Use the RAG knowledge base context for structure and best practices.\n" +
	"Output as well structured markdown with clear sections like:\n" +
	"## Introduction\n## Business Requirement Overview\n## Solution Overview\n" +
	"## SAP Objects\n## Data Model\n## Processing Logic\n## Error Handling\n## Performance & Security\n" +
	"## Transport & Dependencies\n"

// KnowledgeBase supplies reference context for a piece of ABAP source.
type KnowledgeBase interface {
	ContextFor(ctx context.Context, abap string) string
}

var _ adapter.Agent = (*TSFSAgent)(nil)

// TSFSAgent turns ABAP source into a Technical Specification and renders it
// as <outputDir>/<jobID>_ts.docx.
type TSFSAgent struct {
	kb        KnowledgeBase
	renderer  adapter.DocumentRenderer
	outputDir string
}

func NewTSFSAgent(kb KnowledgeBase, renderer adapter.DocumentRenderer, outputDir string) *TSFSAgent {
	return &TSFSAgent{kb: kb, renderer: renderer, outputDir: outputDir}
}

func (a *TSFSAgent) Info() adapter.AgentInfo {
	return adapter.AgentInfo{
		ID:          TSFSAgentID,
		Name:        "TS/FS Generator",
		Description: "Takes ABAP code and generates Technical Specification using RAG KB (outputs DOCX).",
	}
}

func (a *TSFSAgent) Run(ctx context.Context, jobID, prompt string, backend adapter.TextGenerator, _ *model.ChatSession) (adapter.AgentResult, error) {
	kb := a.kb.ContextFor(ctx, prompt)
	adapter.ReportProgress(ctx, fmt.Sprintf("Knowledge base context loaded (%d chars)", len(kb)))

	messages := []adapter.Message{
		{Role: string(model.RoleSystem), Content: tsfsSystemPrompt},
		{Role: string(model.RoleUser), Content: "ABAP code:\n\n" + prompt + "\n\nRAG context:\n\n" + kb + "\n"},
	}

	adapter.ReportProgress(ctx, "Calling text-generation backend")
	text, err := backend.Generate(ctx, messages)
	if err != nil {
		return adapter.AgentResult{}, domain.Upstream(err)
	}

	out := filepath.Join(a.outputDir, jobID+"_ts.docx")
	if err := a.renderer.Render(text, out); err != nil {
		return adapter.AgentResult{}, domain.IO(err)
	}
	adapter.ReportProgress(ctx, "Document rendered: "+filepath.Base(out))

	return adapter.AgentResult{Text: text, OutputDocxPath: out}, nil
}
