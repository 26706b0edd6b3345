// Package draft asks a chat model for a form schema outright, without going
// through an agent turn. The model is forced to answer through a single tool
// call whose arguments are the draft.
package draft

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/dgui/envelope"
	"github.com/tbxark/dgui/validate"
)

const (
	toolName = "draft_form"
	toolDesc = "Return the react-jsonschema-form schema that collects the information described by the user."

	systemPrompt = `You design forms. Read the user's description and call the draft_form tool with:
- schema: a JSON Schema (draft-07) object serialized as a JSON string, with a title and typed properties
- uiSchema: an optional react-jsonschema-form UI schema serialized as a JSON string
Use enums for closed choices and mark only truly necessary fields as required.`
)

// Draft is the model's answer.
type Draft struct {
	Schema   string `json:"schema" jsonschema:"description=The JSON Schema object of the form serialized as a JSON string"`
	UISchema string `json:"uiSchema,omitempty" jsonschema:"description=The react-jsonschema-form UI schema serialized as a JSON string"`
}

// Form parses both documents and checks the schema compiles.
func (d *Draft) Form() (*envelope.ParsedForm, error) {
	env := envelope.NewFormEnvelope("", "", d.Schema, d.UISchema)
	parsed, err := env.Parse()
	if err != nil {
		return nil, err
	}
	if _, err := validate.Compile(parsed.Schema); err != nil {
		return nil, &envelope.ParseError{Field: "schema", Err: err}
	}
	parsed.Title, _ = parsed.Schema["title"].(string)
	return parsed, nil
}

type Drafter struct {
	chatModel model.ToolCallingChatModel
	toolInfo  *schema.ToolInfo
}

func NewDrafter(chatModel model.ToolCallingChatModel) (*Drafter, error) {
	if chatModel == nil {
		return nil, errors.New("draft: chat model is nil")
	}
	toolInfo, err := utils.GoStruct2ToolInfo[Draft](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	return &Drafter{chatModel: chatModel, toolInfo: toolInfo}, nil
}

// Draft returns a schema for description. The result is checked before it is
// returned, so a model answer that does not parse is an error here.
func (d *Drafter) Draft(ctx context.Context, description string) (*Draft, *envelope.ParsedForm, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(description),
	}
	response, err := d.chatModel.Generate(ctx, messages,
		model.WithTools([]*schema.ToolInfo{d.toolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, d.toolInfo.Name),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("call model failed: %w", err)
	}
	if len(response.ToolCalls) == 0 {
		return nil, nil, fmt.Errorf("no ToolCall found in model response: %s", response.Content)
	}

	var result Draft
	if err := sonic.UnmarshalString(response.ToolCalls[0].Function.Arguments, &result); err != nil {
		return nil, nil, fmt.Errorf("parse ToolCall arguments failed: %w", err)
	}
	form, err := result.Form()
	if err != nil {
		return &result, nil, fmt.Errorf("model drafted an unusable form: %w", err)
	}
	return &result, form, nil
}

func (d *Drafter) ToolInfo() *schema.ToolInfo {
	return d.toolInfo
}
