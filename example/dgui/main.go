package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/dgui"
	"github.com/tbxark/dgui/agent"
	"github.com/tbxark/dgui/draft"
	"github.com/tbxark/dgui/envelope"
	"github.com/tbxark/dgui/interrupt"
	"github.com/tbxark/dgui/live"
	"github.com/tbxark/dgui/session"
	"github.com/tbxark/dgui/validate"
	"github.com/tbxark/dgui/widget"
)

const sessionKey = "console"

const usage = `Commands:
  :presets              list example schemas
  :preset <name>        load an example schema
  :schema <json>        replace the schema with raw JSON text
  :set <pointer> <json> set one form value, e.g. :set /size "large"
  :show                 print the schema and form data
  :fill                 fill the current schema yourself
  :draft <description>  draft a new schema from a description
  :reset                forget the conversation and the session
  :quit                 exit
Anything else is sent to the assistant.`

func main() {
	conf := flag.String("config", "config.json", "path to config file (JSON or YAML)")
	flag.Parse()
	config, err := loadConfig(*conf)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := startApp(ctx, config); err != nil {
		log.Fatalf("start app: %v", err)
	}
}

func startApp(ctx context.Context, config *Config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.Level()}))
	slog.SetDefault(logger)

	timeout, err := config.Timeout()
	if err != nil {
		return err
	}
	presets := session.BuiltinPresets()
	if config.PresetsDir != "" {
		presets, err = session.LoadPresetsFS(os.DirFS(config.PresetsDir))
		if err != nil {
			return err
		}
	}

	theme := widget.DefaultTheme()
	terminal := widget.NewTerminal(widget.WithTheme(theme), widget.WithLogger(logger))
	client := dgui.NewClient(dgui.Config{
		Widget:           terminal,
		Presets:          presets,
		InterruptTimeout: timeout,
		Logger:           logger,
		OnSchemaPush: func(ctx context.Context, req *live.SchemaPushRequest, card live.Card) {
			fmt.Println(theme.RenderCard(card))
		},
	})
	go func() {
		if err := client.Serve(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Form server stopped", "error", err)
		}
	}()

	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  config.APIKey,
		Model:   config.Model,
		BaseURL: config.BaseURL,
	})
	if err != nil {
		return err
	}
	tools, err := client.Tools()
	if err != nil {
		return err
	}
	history := agent.NewMemoryHistoryStore(agent.KeepSystemLastNTrimmer{N: 50})
	assistant, err := agent.New(ctx, agent.Config{
		Model:   cm,
		Tools:   tools,
		History: history,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	drafter, err := draft.NewDrafter(cm)
	if err != nil {
		return err
	}
	runner := adk.NewRunner(ctx, adk.RunnerConfig{Agent: assistant})
	con := &console{client: client, history: history, terminal: terminal, drafter: drafter}

	chatCtx := session.WithKey(ctx, sessionKey)
	reader := bufio.NewReader(os.Stdin)
	fmt.Println(theme.RenderHeader("dgui console", "Ask the assistant anything. Type :help for commands."))
	for {
		release := terminal.Acquire()
		fmt.Print("you: ")
		input, rErr := reader.ReadString('\n')
		release()
		if rErr != nil {
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, ":") {
			quit, cErr := con.run(chatCtx, input)
			if cErr != nil {
				fmt.Println(theme.RenderIssues(cErr.Error()))
			}
			if quit {
				return nil
			}
			continue
		}

		reply, aErr := agent.LastAssistantMessage(runner.Run(chatCtx, []adk.Message{schema.UserMessage(input)}))
		if aErr != nil {
			fmt.Println(theme.RenderIssues(aErr.Error()))
			continue
		}
		fmt.Printf("\nassistant: %s\n\n", reply.Content)
	}
}

type console struct {
	client   *dgui.Client
	history  *agent.HistoryStore
	terminal *widget.Terminal
	drafter  *draft.Drafter
}

func (c *console) run(ctx context.Context, input string) (bool, error) {
	name, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)
	sess, err := c.client.Session(ctx)
	if err != nil {
		return false, err
	}

	switch name {
	case ":quit", ":exit":
		return true, nil
	case ":help":
		fmt.Println(usage)
	case ":presets":
		fmt.Println(strings.Join(sess.Presets().Names(), "\n"))
	case ":preset":
		return false, sess.LoadPreset(rest)
	case ":schema":
		return false, sess.SetSchemaFromText(rest)
	case ":set":
		pointer, raw, ok := strings.Cut(rest, " ")
		if !ok {
			return false, fmt.Errorf("usage: :set <pointer> <json>")
		}
		var value any
		if err := sonic.UnmarshalString(strings.TrimSpace(raw), &value); err != nil {
			return false, fmt.Errorf("value is not JSON: %w", err)
		}
		return false, sess.PatchFields([]session.Operation{{Op: session.OperationReplace, Path: pointer, Value: value}})
	case ":show":
		data, err := envelope.Pretty(sess.FormData())
		if err != nil {
			return false, err
		}
		fmt.Printf("schema:\n%s\n\nform data:\n%s\n", sess.RawSchemaText(), data)
	case ":fill":
		return false, c.fill(ctx, sess)
	case ":draft":
		if rest == "" {
			return false, fmt.Errorf("usage: :draft <description>")
		}
		_, form, err := c.drafter.Draft(ctx, rest)
		if err != nil {
			return false, err
		}
		c.client.Live().Push(ctx, form.Schema)
	case ":reset":
		if err := c.history.Clear(ctx); err != nil {
			return false, err
		}
		return false, c.client.CloseSession(ctx)
	default:
		return false, fmt.Errorf("unknown command %s, try :help", name)
	}
	return false, nil
}

// fill renders the operator's own schema, outside of any agent request.
func (c *console) fill(ctx context.Context, sess *session.Session) error {
	active := sess.ActiveSchema()
	validator, err := validate.Compile(active)
	if err != nil {
		return err
	}
	title, _ := active["title"].(string)
	form := &interrupt.Form{Title: title, Schema: active, Validator: validator}
	return c.terminal.Render(ctx, form, interrupt.Handlers{
		OnChange: sess.SetFormData,
		OnSubmit: func(data map[string]any) {
			sess.SetFormData(data)
			fmt.Println("form data saved")
		},
	})
}
