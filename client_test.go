package dgui

import (
	"context"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/dgui/envelope"
	"github.com/tbxark/dgui/interrupt"
	"github.com/tbxark/dgui/live"
	"github.com/tbxark/dgui/session"
)

func invokable(t *testing.T, c *Client, name string) tool.InvokableTool {
	t.Helper()
	tools, err := c.Tools()
	require.NoError(t, err)
	for _, bt := range tools {
		info, err := bt.Info(context.Background())
		require.NoError(t, err)
		if info.Name == name {
			it, ok := bt.(tool.InvokableTool)
			require.True(t, ok)
			return it
		}
	}
	t.Fatalf("tool %s not found", name)
	return nil
}

func askArgs(t *testing.T, question, uiSchema string) string {
	t.Helper()
	args, err := sonic.MarshalString(map[string]string{"question": question, "uiSchema": uiSchema})
	require.NoError(t, err)
	return args
}

func serve(t *testing.T, c *Client) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = c.Serve(ctx) }()
	return ctx
}

func TestAskQuestion_RoundTrip(t *testing.T) {
	forms := make(chan *interrupt.Form, 1)
	c := NewClient(Config{Widget: interrupt.WidgetFunc(func(ctx context.Context, form *interrupt.Form, h interrupt.Handlers) error {
		forms <- form
		h.OnSubmit(map[string]any{"size": "large"})
		return nil
	})})
	ctx := serve(t, c)

	out, err := invokable(t, c, AskQuestionToolName).InvokableRun(ctx,
		askArgs(t, `{"type":"object","properties":{"size":{"type":"string"}}}`, `{"size":{"ui:help":"pick one"}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"dgui_response","data":{"size":"large"}}`, out)

	form := <-forms
	assert.Equal(t, AskQuestionTitle, form.Title)
	assert.Equal(t, AskQuestionDescription, form.Description)
	assert.Equal(t, map[string]any{"size": map[string]any{"ui:help": "pick one"}}, form.UISchema)
}

func TestAskQuestion_MalformedSchema(t *testing.T) {
	c := NewClient(Config{Widget: interrupt.WidgetFunc(func(ctx context.Context, form *interrupt.Form, h interrupt.Handlers) error {
		t.Error("widget must not render a malformed request")
		return nil
	})})
	ctx := serve(t, c)

	out, err := invokable(t, c, AskQuestionToolName).InvokableRun(ctx, askArgs(t, "not json", ""))
	require.NoError(t, err)
	res, err := envelope.DecodeResolution(out)
	require.NoError(t, err)
	assert.True(t, res.IsError())
	assert.Equal(t, envelope.InvalidFormMessage, res.Message)
}

func TestAskQuestion_Timeout(t *testing.T) {
	c := NewClient(Config{
		InterruptTimeout: 20 * time.Millisecond,
		Widget: interrupt.WidgetFunc(func(ctx context.Context, form *interrupt.Form, h interrupt.Handlers) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	})
	ctx := serve(t, c)

	out, err := invokable(t, c, AskQuestionToolName).InvokableRun(ctx, askArgs(t, `{"type":"object"}`, ""))
	require.NoError(t, err)
	res, err := envelope.DecodeResolution(out)
	require.NoError(t, err)
	assert.Equal(t, envelope.TimeoutMessage, res.Message)
}

func TestAskQuestion_RejectsSecondPendingRequest(t *testing.T) {
	c := NewClient(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	firstDone := make(chan error, 1)
	go func() {
		_, err := c.Broker().Suspend(ctx, envelope.NewFormEnvelope("first", "", `{}`, ""))
		firstDone <- err
	}()
	require.Eventually(t, func() bool {
		_, pending := c.Broker().Pending()
		return pending
	}, time.Second, time.Millisecond)

	out, err := invokable(t, c, AskQuestionToolName).InvokableRun(ctx, askArgs(t, `{"type":"object"}`, ""))
	require.NoError(t, err)
	res, err := envelope.DecodeResolution(out)
	require.NoError(t, err)
	assert.True(t, res.IsError())
	assert.Equal(t, pendingMessage, res.Message)

	cancel()
	assert.ErrorIs(t, <-firstDone, context.Canceled)
}

func TestGenerateSchema_Push(t *testing.T) {
	var cards []live.Card
	c := NewClient(Config{OnSchemaPush: func(ctx context.Context, req *live.SchemaPushRequest, card live.Card) {
		cards = append(cards, card)
	}})
	ctx := session.WithKey(context.Background(), "conv-1")
	sess, err := c.Session(ctx)
	require.NoError(t, err)
	sess.SetFormData(map[string]any{"name": "Ada"})
	push := invokable(t, c, GenerateSchemaToolName)

	out, err := push.InvokableRun(ctx, `{"jsonSchema":"{\"title\":\"Contact\",\"type\":\"object\"}"}`)
	require.NoError(t, err)
	var result SchemaPushResult
	require.NoError(t, sonic.UnmarshalString(out, &result))
	assert.True(t, result.Applied)
	assert.Equal(t, "Contact", result.Title)
	assert.Equal(t, string(live.StatusComplete), result.Status)
	assert.Equal(t, "Contact", sess.ActiveSchema()["title"])
	assert.Equal(t, map[string]any{"name": "Ada"}, sess.FormData())
	require.Len(t, cards, 2)
	assert.Equal(t, live.PendingTitle, cards[0].Title)

	out, err = push.InvokableRun(ctx, `{"jsonSchema":{"type":"object","title":"Survey"}}`)
	require.NoError(t, err)
	require.NoError(t, sonic.UnmarshalString(out, &result))
	assert.True(t, result.Applied)
	assert.Equal(t, "Survey", sess.ActiveSchema()["title"])

	other, err := c.Session(session.WithKey(context.Background(), "conv-2"))
	require.NoError(t, err)
	assert.Equal(t, "Simple Form", other.ActiveSchema()["title"])
}

func TestGenerateSchema_InvalidPushIsDiscarded(t *testing.T) {
	c := NewClient(Config{})
	ctx := context.Background()
	sess, err := c.Session(ctx)
	require.NoError(t, err)
	before := sess.Snapshot()

	out, err := invokable(t, c, GenerateSchemaToolName).InvokableRun(ctx, `{"jsonSchema":"{oops"}`)
	require.NoError(t, err)
	var result SchemaPushResult
	require.NoError(t, sonic.UnmarshalString(out, &result))
	assert.False(t, result.Applied)
	assert.Equal(t, live.FallbackTitle, result.Title)
	assert.Equal(t, before, sess.Snapshot())

	_, err = invokable(t, c, GenerateSchemaToolName).InvokableRun(ctx, `not json`)
	assert.Error(t, err)
}

func TestWeatherTool(t *testing.T) {
	out, err := invokable(t, NewClient(Config{}), WeatherToolName).InvokableRun(context.Background(), `{"location":"Paris"}`)
	require.NoError(t, err)
	assert.Equal(t, "The weather for Paris is 70 degrees.", out)
}

func TestToolInfos(t *testing.T) {
	infos, err := NewClient(Config{}).ToolInfos(context.Background())
	require.NoError(t, err)
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{AskQuestionToolName, GenerateSchemaToolName, WeatherToolName}, names)
}

func TestGenerateSchema_ParamDescribesBothForms(t *testing.T) {
	param := jsonSchemaParam()
	assert.True(t, param.Required)
	assert.Contains(t, param.Desc, "schema object itself")
	assert.Contains(t, param.Desc, "serialized into a JSON string")
}

func TestServe_RequiresWidget(t *testing.T) {
	assert.Error(t, NewClient(Config{}).Serve(context.Background()))
}

func TestCloseSession(t *testing.T) {
	c := NewClient(Config{})
	ctx := session.WithKey(context.Background(), "gone")
	first, err := c.Session(ctx)
	require.NoError(t, err)
	require.NoError(t, c.CloseSession(ctx))
	second, err := c.Session(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}
