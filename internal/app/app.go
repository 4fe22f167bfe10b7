// Package app wires the relay components from configuration.
package app

import (
	"context"
	"fmt"
	"log"

	"assistant-relay/internal/assistant"
	"assistant-relay/internal/config"
	"assistant-relay/internal/conversation"
	"assistant-relay/internal/export"
	"assistant-relay/internal/runner"
	"assistant-relay/internal/scheduler"
	"assistant-relay/internal/search"
	"assistant-relay/internal/session"
	"assistant-relay/internal/storage"
	"assistant-relay/internal/tasks"
	"assistant-relay/internal/tools"
)

type App struct {
	Config    *config.Config
	Gateway   *assistant.OpenAIGateway
	Sessions  *session.Manager
	Tasks     *tasks.Orchestrator
	Recorder  storage.Recorder
	Exporter  *export.Exporter
	Scheduler *scheduler.Scheduler

	closers []func() error
}

// Build assembles the relay. The caller owns Close.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Scheduler: scheduler.New()}

	a.Gateway = assistant.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, nil)

	provider, err := a.searchProvider(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	policy, err := tools.ParseUnknownPolicy(cfg.UnknownToolPolicy)
	if err != nil {
		a.Close()
		return nil, err
	}
	dispatcher := tools.NewDispatcher(policy)
	dispatcher.Register(cfg.SearchToolName, tools.SearchHandler(provider))
	log.Printf("🧰 Tools registered: %v (unknown tools: %s)", dispatcher.Names(), cfg.UnknownToolPolicy)

	driver := runner.New(a.Gateway, dispatcher, runner.Config{
		AssistantID:  cfg.OpenAIAssistantID,
		PollInterval: cfg.PollInterval,
		Timeout:      cfg.RunTimeout,
	})

	if cfg.LogFilePath != "" {
		fr, err := storage.NewFileRecorder(cfg.LogFilePath)
		if err != nil {
			log.Printf("failed to init file recorder: %v", err)
		} else {
			a.Recorder = fr
		}
	}

	a.Sessions = session.NewManager(a.Gateway, conversation.NewStore())
	a.Tasks = tasks.New(driver, a.Sessions, a.Recorder)

	if cfg.ExportEnabled() {
		exp, err := a.exporter(ctx)
		if err != nil {
			log.Printf("⚠️ Export disabled: %v", err)
		} else {
			a.Exporter = exp
		}
	}

	if err := a.Scheduler.Add(scheduler.JanitorJob(cfg.JanitorSpec, a.Tasks, cfg.TaskTTL)); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// AddReport schedules the daily usage report. Without an interaction log
// there is nothing to report.
func (a *App) AddReport(deliver func(ctx context.Context, text string) error) error {
	if a.Recorder == nil {
		return nil
	}
	return a.Scheduler.Add(scheduler.ReportJob(a.Config.ReportSpec, a.Recorder, deliver))
}

func (a *App) searchProvider(ctx context.Context) (search.Provider, error) {
	switch a.Config.SearchBackend {
	case config.SearchMCP:
		client := search.NewMCPClient()
		env := []string{"TAVILY_API_KEY=" + a.Config.TavilyAPIKey}
		if a.Config.TavilyBaseURL != "" {
			env = append(env, "TAVILY_BASE_URL="+a.Config.TavilyBaseURL)
		}
		if err := client.Connect(ctx, a.Config.SearchMCPServerPath, env...); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return client, nil
	case config.SearchTavily:
		return search.NewTavily(a.Config.TavilyAPIKey, a.Config.TavilyBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown search backend %q", a.Config.SearchBackend)
	}
}

func (a *App) exporter(ctx context.Context) (*export.Exporter, error) {
	conv := export.NewConvertAPI(a.Config.ConvertAPISecret, a.Config.ConvertAPIBaseURL)
	if !a.Config.DriveEnabled() {
		return export.New(conv, nil), nil
	}
	client, err := export.DriveClient(ctx, a.Config.DriveCredentialsFile, a.Config.DriveTokenFile)
	if err != nil {
		return nil, err
	}
	up, err := export.NewDriveUploader(ctx, client, a.Config.DriveFolderID)
	if err != nil {
		return nil, err
	}
	return export.New(conv, up), nil
}

// Close stops the scheduler, waits for running tasks and releases the
// search backend.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Tasks != nil {
		a.Tasks.Wait()
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Printf("failed to close: %v", err)
		}
	}
}
