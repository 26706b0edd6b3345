package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

const (
	DefaultName        = "dgui_assistant"
	DefaultDescription = "Assistant that asks the user for structured input through forms."

	Instruction = `You are a helpful assistant, you are very careful to not take any assumptions.
You have two tools: ask_question and generateJsonSchema tools.
If the user query directly asks you to build a form, you must use the generateJsonSchema tool.
For other user queries, If you need more information ALWAYS use the ask_question tool, read the definition of ask_question to see if it fits`
)

var _ adk.Agent = (*Agent)(nil)

// Agent runs a tool calling chat model over the conversation history of the
// session routed by the context.
type Agent struct {
	name        string
	description string
	inner       adk.Agent
	history     HistoryReadWriter
	logger      *slog.Logger
}

type Config struct {
	Name        string
	Description string
	Instruction string
	Model       model.ToolCallingChatModel
	Tools       []tool.BaseTool
	History     HistoryReadWriter
	Logger      *slog.Logger
	// MaxIterations bounds model/tool round trips per run. Zero keeps the
	// runtime default.
	MaxIterations int
}

func New(ctx context.Context, cfg Config) (*Agent, error) {
	if cfg.Model == nil {
		return nil, errors.New("agent: chat model is required")
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Description == "" {
		cfg.Description = DefaultDescription
	}
	if cfg.Instruction == "" {
		cfg.Instruction = Instruction
	}
	if cfg.History == nil {
		cfg.History = NewMemoryHistoryStore(KeepSystemLastNTrimmer{N: 40})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	inner, err := adk.NewChatModelAgent(ctx, &adk.ChatModelAgentConfig{
		Name:        cfg.Name,
		Description: cfg.Description,
		Instruction: cfg.Instruction,
		Model:       cfg.Model,
		ToolsConfig: adk.ToolsConfig{
			ToolsNodeConfig: toolsNodeConfig(cfg.Tools),
		},
		MaxIterations: cfg.MaxIterations,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model agent: %w", err)
	}
	return NewAgent(cfg.Name, cfg.Description, inner, cfg.History, cfg.Logger), nil
}

// toolsNodeConfig runs tool calls one at a time. A form request blocks until
// the operator answers, and only one may be pending.
func toolsNodeConfig(tools []tool.BaseTool) compose.ToolsNodeConfig {
	return compose.ToolsNodeConfig{
		Tools:               tools,
		ExecuteSequentially: true,
	}
}

// NewAgent wraps any adk agent with history handling.
func NewAgent(name, description string, inner adk.Agent, history HistoryReadWriter, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		name:        name,
		description: description,
		inner:       inner,
		history:     history,
		logger:      logger,
	}
}

func (a *Agent) Name(ctx context.Context) string {
	return a.name
}

func (a *Agent) Description(ctx context.Context) string {
	return a.description
}

// Run appends the input to the stored history, runs the inner agent over the
// whole conversation and records every complete message it produces.
func (a *Agent) Run(ctx context.Context, input *adk.AgentInput, options ...adk.AgentRunOption) *adk.AsyncIterator[*adk.AgentEvent] {
	iter, gen := adk.NewAsyncIteratorPair[*adk.AgentEvent]()
	go func() {
		defer func() {
			e := recover()
			if e != nil {
				gen.Send(&adk.AgentEvent{
					Err: fmt.Errorf("recover from panic: %v", e),
				})
			}
			gen.Close()
		}()
		if input == nil || len(input.Messages) == 0 {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("no messages in input"),
			})
			return
		}

		messages := input.Messages
		if a.history != nil {
			hist, err := a.history.Append(ctx, input.Messages...)
			if err != nil {
				gen.Send(&adk.AgentEvent{Err: fmt.Errorf("failed to load history: %w", err)})
				return
			}
			messages = hist
		}

		events := a.inner.Run(ctx, &adk.AgentInput{
			Messages:        messages,
			EnableStreaming: input.EnableStreaming,
		}, options...)
		for {
			event, ok := events.Next()
			if !ok {
				break
			}
			a.record(ctx, event)
			gen.Send(event)
		}
	}()
	return iter
}

func (a *Agent) record(ctx context.Context, event *adk.AgentEvent) {
	if a.history == nil || event == nil || event.Err != nil || event.Output == nil {
		return
	}
	mv := event.Output.MessageOutput
	if mv == nil || mv.IsStreaming || mv.Message == nil {
		return
	}
	if _, err := a.history.Append(ctx, mv.Message); err != nil {
		a.logger.Warn("Failed to record agent message", "role", mv.Message.Role, "error", err)
	}
}

// LastAssistantMessage drains events and returns the final assistant reply.
func LastAssistantMessage(iter *adk.AsyncIterator[*adk.AgentEvent]) (*schema.Message, error) {
	var last *schema.Message
	for {
		event, ok := iter.Next()
		if !ok {
			break
		}
		if event.Err != nil {
			return nil, event.Err
		}
		if event.Output == nil || event.Output.MessageOutput == nil {
			continue
		}
		msg, err := event.Output.MessageOutput.GetMessage()
		if err != nil {
			return nil, err
		}
		if msg != nil && msg.Role == schema.Assistant && len(msg.ToolCalls) == 0 {
			last = msg
		}
	}
	if last == nil {
		return nil, errors.New("agent produced no reply")
	}
	return last, nil
}
