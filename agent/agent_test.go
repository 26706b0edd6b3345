package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/dgui/session"
)

type scriptedAgent struct {
	mu     sync.Mutex
	turns  [][]*adk.AgentEvent
	inputs [][]*schema.Message
}

func (s *scriptedAgent) Name(ctx context.Context) string        { return "scripted" }
func (s *scriptedAgent) Description(ctx context.Context) string { return "replays canned events" }

func (s *scriptedAgent) Run(ctx context.Context, input *adk.AgentInput, _ ...adk.AgentRunOption) *adk.AsyncIterator[*adk.AgentEvent] {
	s.mu.Lock()
	s.inputs = append(s.inputs, append([]*schema.Message(nil), input.Messages...))
	var events []*adk.AgentEvent
	if len(s.turns) > 0 {
		events, s.turns = s.turns[0], s.turns[1:]
	}
	s.mu.Unlock()

	iter, gen := adk.NewAsyncIteratorPair[*adk.AgentEvent]()
	go func() {
		defer gen.Close()
		for _, e := range events {
			gen.Send(e)
		}
	}()
	return iter
}

func messageEvent(msg *schema.Message) *adk.AgentEvent {
	return &adk.AgentEvent{
		Output: &adk.AgentOutput{
			MessageOutput: &adk.MessageVariant{Message: msg, Role: msg.Role},
		},
	}
}

func TestAgent_CarriesHistoryAcrossRuns(t *testing.T) {
	call := schema.ToolCall{ID: "call_1", Function: schema.FunctionCall{Name: "ask_question", Arguments: `{}`}}
	inner := &scriptedAgent{turns: [][]*adk.AgentEvent{
		{
			messageEvent(schema.AssistantMessage("", []schema.ToolCall{call})),
			messageEvent(schema.ToolMessage(`{"type":"dgui_response","data":{"length":3,"width":4}}`, "call_1")),
			messageEvent(schema.AssistantMessage("The area is 12.", nil)),
		},
		{
			messageEvent(schema.AssistantMessage("You're welcome.", nil)),
		},
	}}
	a := NewAgent("test", "test agent", inner, NewMemoryHistoryStore(nil), nil)
	ctx := session.WithKey(context.Background(), "conv")

	reply, err := LastAssistantMessage(a.Run(ctx, &adk.AgentInput{Messages: []adk.Message{schema.UserMessage("What is the area of a rectangle?")}}))
	require.NoError(t, err)
	assert.Equal(t, "The area is 12.", reply.Content)

	reply, err = LastAssistantMessage(a.Run(ctx, &adk.AgentInput{Messages: []adk.Message{schema.UserMessage("thanks")}}))
	require.NoError(t, err)
	assert.Equal(t, "You're welcome.", reply.Content)

	require.Len(t, inner.inputs, 2)
	second := inner.inputs[1]
	require.Len(t, second, 5)
	assert.Equal(t, schema.User, second[0].Role)
	assert.Len(t, second[1].ToolCalls, 1)
	assert.Equal(t, schema.Tool, second[2].Role)
	assert.Equal(t, "The area is 12.", second[3].Content)
	assert.Equal(t, "thanks", second[4].Content)
}

func TestAgent_RoutesHistoryBySessionKey(t *testing.T) {
	inner := &scriptedAgent{}
	history := NewMemoryHistoryStore(nil)
	a := NewAgent("test", "", inner, history, nil)

	for _, key := range []string{"a", "b"} {
		ctx := session.WithKey(context.Background(), key)
		iter := a.Run(ctx, &adk.AgentInput{Messages: []adk.Message{schema.UserMessage("hello " + key)}})
		for {
			if _, ok := iter.Next(); !ok {
				break
			}
		}
	}

	hist, err := history.Load(session.WithKey(context.Background(), "b"))
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "hello b", hist[0].Content)
}

func TestAgent_EmptyInput(t *testing.T) {
	a := NewAgent("test", "", &scriptedAgent{}, nil, nil)
	_, err := LastAssistantMessage(a.Run(context.Background(), &adk.AgentInput{}))
	assert.Error(t, err)
}

func TestKeepSystemLastNTrimmer(t *testing.T) {
	sys := schema.SystemMessage("system")
	u1 := schema.UserMessage("u1")
	call := schema.AssistantMessage("", []schema.ToolCall{{ID: "c1"}})
	result := schema.ToolMessage("r1", "c1")
	a1 := schema.AssistantMessage("a1", nil)
	u2 := schema.UserMessage("u2")

	history := []*schema.Message{sys, u1, call, result, a1, u2}

	assert.Equal(t, history, KeepSystemLastNTrimmer{N: 10}.Trim(history))
	assert.Equal(t, []*schema.Message{sys}, KeepSystemLastNTrimmer{N: 0}.Trim(history))
	assert.Equal(t, []*schema.Message{sys, a1, u2}, KeepSystemLastNTrimmer{N: 2}.Trim(history))
	assert.Equal(t, []*schema.Message{sys, a1, u2}, KeepSystemLastNTrimmer{N: 3}.Trim(history))
	assert.Equal(t, []*schema.Message{sys, call, result, a1, u2}, KeepSystemLastNTrimmer{N: 4}.Trim(history))
}

func TestHistoryStore_AppendDeduplicates(t *testing.T) {
	store := NewMemoryHistoryStore(KeepSystemLastNTrimmer{N: 3})
	ctx := context.Background()

	_, err := store.Append(ctx, schema.UserMessage("hi"), schema.UserMessage("hi"), nil)
	require.NoError(t, err)
	hist, err := store.Append(ctx, schema.AssistantMessage("hello", nil), schema.UserMessage("a"), schema.UserMessage("b"))
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "hello", hist[0].Content)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, hist, loaded)

	require.NoError(t, store.Clear(ctx))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
