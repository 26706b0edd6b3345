// Package dgui lets an eino agent ask a human operator for structured input
// through schema-driven forms. The agent gets two tools: ask_question suspends
// until the operator submits a form, generateJsonSchema pushes a schema to the
// operator's editor without waiting.
package dgui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/dgui/interrupt"
	"github.com/tbxark/dgui/live"
	"github.com/tbxark/dgui/session"
	"github.com/tbxark/dgui/suspend"
)

type Config struct {
	// Widget renders blocking form requests. Required for Serve.
	Widget interrupt.Widget
	// Presets seeds every new session. Defaults to the builtin presets.
	Presets *session.Presets
	// InterruptTimeout bounds how long ask_question waits. Zero waits forever.
	InterruptTimeout time.Duration
	// OnSchemaPush is called when a live push starts and when it completes.
	OnSchemaPush   live.RenderFunc
	OnTransition   interrupt.TransitionFunc
	Logger         *slog.Logger
	SessionBackend session.Cache[*session.Session]
}

// Client is the operator side: it owns the sessions, answers blocking form
// requests and applies live schema pushes.
type Client struct {
	store      *session.Store
	broker     *suspend.Broker
	controller *interrupt.Controller
	live       *live.Channel
	widget     interrupt.Widget
	logger     *slog.Logger
}

func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	presets := cfg.Presets
	if presets == nil {
		presets = session.BuiltinPresets()
	}
	backend := cfg.SessionBackend
	if backend == nil {
		backend = session.NewMemoryCache[*session.Session]()
	}
	store := session.NewStore(backend, func(ctx context.Context) *session.Session {
		return session.New(session.WithPresets(presets))
	})

	return &Client{
		store: store,
		broker: suspend.NewBroker(
			suspend.WithTimeout(cfg.InterruptTimeout),
			suspend.WithLogger(logger.With("component", "broker")),
		),
		controller: interrupt.NewController(cfg.Widget,
			interrupt.WithLogger(logger.With("component", "interrupt")),
			interrupt.WithTransitionHook(cfg.OnTransition),
		),
		live: live.NewChannel(store,
			live.WithLogger(logger.With("component", "live")),
			live.WithRenderer(cfg.OnSchemaPush),
		),
		widget: cfg.Widget,
		logger: logger,
	}
}

// Tools returns the agent tools bound to this client.
func (c *Client) Tools() ([]tool.BaseTool, error) {
	ask, err := NewAskQuestionTool(c.broker)
	if err != nil {
		return nil, fmt.Errorf("failed to create ask_question tool: %w", err)
	}
	push, err := NewGenerateSchemaTool(c.live)
	if err != nil {
		return nil, fmt.Errorf("failed to create generateJsonSchema tool: %w", err)
	}
	weather, err := NewWeatherTool()
	if err != nil {
		return nil, fmt.Errorf("failed to create get_weather tool: %w", err)
	}
	return []tool.BaseTool{ask, push, weather}, nil
}

// ToolInfos describes the tools for binding to a chat model directly.
func (c *Client) ToolInfos(ctx context.Context) ([]*schema.ToolInfo, error) {
	tools, err := c.Tools()
	if err != nil {
		return nil, err
	}
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := getToolInfo(ctx, t)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Serve answers blocking form requests until ctx ends.
func (c *Client) Serve(ctx context.Context) error {
	if c.widget == nil {
		return errors.New("dgui: no widget configured")
	}
	c.logger.Debug("Serving form requests")
	return c.controller.Serve(ctx, c.broker.Interrupts())
}

// Session returns the session routed by ctx, see session.WithKey.
func (c *Client) Session(ctx context.Context) (*session.Session, error) {
	return c.store.Load(ctx)
}

// CloseSession drops the session routed by ctx.
func (c *Client) CloseSession(ctx context.Context) error {
	return c.store.Remove(ctx)
}

func (c *Client) Broker() *suspend.Broker {
	return c.broker
}

func (c *Client) Live() *live.Channel {
	return c.live
}
