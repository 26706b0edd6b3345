package dgui

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/dgui/envelope"
	"github.com/tbxark/dgui/live"
	"github.com/tbxark/dgui/suspend"
)

const (
	AskQuestionToolName    = "ask_question"
	GenerateSchemaToolName = "generateJsonSchema"
	WeatherToolName        = "get_weather"

	AskQuestionTitle       = "Additional Information Required"
	AskQuestionDescription = "Please fill out the following form to provide the necessary information."

	pendingMessage = "Another form request is still waiting for the user."
)

const askQuestionDesc = `Asks the user for structured information by generating a form.
Use it when you need several pieces of information from the user to proceed.
The question parameter must be a serialized JSON string holding a react-jsonschema-form (RJSF) JSON Schema that you build from what you need to collect.
The uiSchema parameter is a serialized JSON string holding the RJSF UI schema for the form.
Examples:
1. "I need to schedule a meeting with the marketing team about the Q3 launch." Ask for Meeting Title, Attendees (array of emails), Date/Time and Agenda (textarea).
2. "I'm looking for a used car, maybe a Honda or Toyota, under $15,000." Ask for Make (multi-select), Model and Max Price.
3. "My shipping address is wrong, I moved recently." Ask for Street, City, State and Zip Code.
4. "Book a flight for me next week." Ask for Departure City, Destination City, Departure Date, Return Date and Preferred Airline.
5. "What is the area of a rectangle?" Ask for Length (number) and Width (number).
6. "How much does it cost?" Confirm what "it" refers to with a confirmation or a radio choice between candidates.
The tool returns a JSON string: {"type":"dgui_response","data":{...}} with the submitted data, or {"type":"dgui_error","message":"...","payload":...} when the form could not be shown or was cancelled.`

// Suspender blocks the agent until the operator answers a form request.
type Suspender interface {
	Suspend(ctx context.Context, value any) (string, error)
}

// SchemaPusher shows a generated schema to the operator without blocking.
type SchemaPusher interface {
	Push(ctx context.Context, raw any) *live.SchemaPushRequest
}

type AskQuestionInput struct {
	Question string `json:"question" jsonschema:"description=A serialized JSON string representing a form schema that adheres to react-jsonschema-form"`
	UISchema string `json:"uiSchema" jsonschema:"description=A serialized JSON string representing the UI schema for the form"`
}

// NewAskQuestionTool wraps the model's schema into a form request and waits
// for the operator. The resolution string is handed back to the model as is.
func NewAskQuestionTool(s Suspender) (tool.InvokableTool, error) {
	if s == nil {
		return nil, errors.New("ask_question: suspender is nil")
	}
	toolFunc := func(ctx context.Context, input *AskQuestionInput) (string, error) {
		env := envelope.NewFormEnvelope(AskQuestionTitle, AskQuestionDescription, input.Question, input.UISchema)
		result, err := s.Suspend(ctx, env)
		if errors.Is(err, suspend.ErrInterruptPending) {
			return envelope.EncodeResolution(envelope.Error(pendingMessage, nil)), nil
		}
		if err != nil {
			return "", fmt.Errorf("ask_question: %w", err)
		}
		return result, nil
	}
	return utils.InferTool(AskQuestionToolName, askQuestionDesc, toolFunc)
}

type WeatherInput struct {
	Location string `json:"location" jsonschema:"description=The location to get the weather for"`
}

func NewWeatherTool() (tool.InvokableTool, error) {
	return utils.InferTool(WeatherToolName, "Get the weather for a given location.",
		func(ctx context.Context, input *WeatherInput) (string, error) {
			return fmt.Sprintf("The weather for %s is 70 degrees.", input.Location), nil
		})
}

// SchemaPushResult is what generateJsonSchema reports back to the model.
type SchemaPushResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Applied bool   `json:"applied"`
	Title   string `json:"title"`
}

// schemaTool accepts jsonSchema as either a JSON string or an object, which
// the inferred tools cannot express, so it implements the tool contract
// directly.
type schemaTool struct {
	pusher SchemaPusher
}

var _ tool.InvokableTool = (*schemaTool)(nil)

func NewGenerateSchemaTool(p SchemaPusher) (tool.InvokableTool, error) {
	if p == nil {
		return nil, errors.New("generateJsonSchema: pusher is nil")
	}
	return &schemaTool{pusher: p}, nil
}

func (t *schemaTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: GenerateSchemaToolName,
		Desc: "Generates the rjsf compatible json schema for the form you want to create and shows it to the user right away. Use it when the user directly asks you to build a form.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"jsonSchema": jsonSchemaParam(),
		}),
	}, nil
}

// jsonSchemaParam is declared as a string, but InvokableRun takes an object
// just as well.
func jsonSchemaParam() *schema.ParameterInfo {
	return &schema.ParameterInfo{
		Type: schema.String,
		Desc: "The form's JSON schema. Either pass the schema object itself, " +
			`for example {"title":"Contact","type":"object","properties":{...}}, ` +
			"or the same object serialized into a JSON string. Both forms are accepted.",
		Required: true,
	}
}

func (t *schemaTool) IsCallbacksEnabled() bool {
	return true
}

func (t *schemaTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	ctx = callbacks.EnsureRunInfo(ctx, GenerateSchemaToolName, "Tool")
	ctx = callbacks.OnStart(ctx, map[string]any{"arguments": argumentsInJSON})

	var args map[string]any
	if err := sonic.UnmarshalString(argumentsInJSON, &args); err != nil {
		err = fmt.Errorf("generateJsonSchema: invalid arguments: %w", err)
		callbacks.OnError(ctx, err)
		return "", err
	}

	req := t.pusher.Push(ctx, args["jsonSchema"])
	card := req.Card()
	out, err := sonic.MarshalString(&SchemaPushResult{
		ID:      req.ID,
		Status:  string(req.Status),
		Applied: req.Applied,
		Title:   card.Title,
	})
	if err != nil {
		callbacks.OnError(ctx, err)
		return "", err
	}

	callbacks.OnEnd(ctx, map[string]any{"push_id": req.ID, "applied": req.Applied})
	return out, nil
}

func getToolInfo(ctx context.Context, t tool.BaseTool) (*schema.ToolInfo, error) {
	info, err := t.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tool info: %w", err)
	}
	return info, nil
}
