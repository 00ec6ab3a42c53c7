package main

import (
	"fmt"

	"agentdesk/internal/agentapi"
	"agentdesk/internal/browser"
	"agentdesk/internal/config"
	"agentdesk/internal/download"
	"agentdesk/internal/logging"
	"agentdesk/internal/session"
)

// newClient builds the agent service client from the loaded config.
func newClient() (*agentapi.Client, error) {
	return agentapi.NewClient(cfg.API.BaseURL,
		agentapi.WithTimeout(cfg.GetAPITimeout()),
		agentapi.WithLogger(logging.For(logger, logging.CategoryAPI)))
}

// newDownloader returns the report downloader for the configured mode and a
// shutdown func. Mode "none" yields a nil downloader.
func newDownloader() (download.Downloader, func(), error) {
	switch cfg.Download.Mode {
	case config.DownloadModeNone:
		return nil, func() {}, nil
	case config.DownloadModeFile:
		return download.NewFileSaver(cfg.Download.Dir, nil), func() {}, nil
	case config.DownloadModeBrowser:
		bc := browser.Config{
			DebuggerURL:       cfg.Browser.DebuggerURL,
			Headless:          cfg.Browser.Headless,
			DownloadDir:       cfg.Download.Dir,
			NavigationTimeout: cfg.GetNavigationTimeout(),
		}
		if cfg.Browser.Bin != "" {
			bc.Launch = []string{cfg.Browser.Bin}
		}
		d := browser.NewDownloader(bc, logging.For(logger, logging.CategoryBrowser))
		return d, func() { _ = d.Shutdown() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported download mode %q", cfg.Download.Mode)
	}
}

// newOrchestrator wires the session core. The returned cleanup waits for
// pending report downloads and releases the browser.
func newOrchestrator() (*session.Orchestrator, func(), error) {
	client, err := newClient()
	if err != nil {
		return nil, nil, err
	}
	dl, shutdown, err := newDownloader()
	if err != nil {
		return nil, nil, err
	}

	opts := []session.Option{
		session.WithLogger(logging.For(logger, logging.CategorySession)),
		session.WithDownloadTimeout(cfg.GetDownloadTimeout()),
	}
	if dl != nil {
		opts = append(opts, session.WithDownloader(dl))
	}
	orch := session.New(client, opts...)

	return orch, func() {
		orch.Close()
		shutdown()
	}, nil
}
