package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lokutor-ai/lingua-voice/internal/config"
	"github.com/lokutor-ai/lingua-voice/internal/observability"
	"github.com/lokutor-ai/lingua-voice/internal/uiserver"
	"github.com/lokutor-ai/lingua-voice/pkg/capture"
	"github.com/lokutor-ai/lingua-voice/pkg/channel/gemini"
	"github.com/lokutor-ai/lingua-voice/pkg/channel/relay"
	"github.com/lokutor-ai/lingua-voice/pkg/live"
	"github.com/lokutor-ai/lingua-voice/pkg/playback"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	zl := observability.NewLogger(cfg.LogLevel, cfg.LogPretty, os.Stderr)
	logger := observability.NewSessionLogger(zl)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dialer, err := newDialer(ctx, cfg, logger)
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to configure channel")
	}

	speaker, err := playback.NewOpener(playback.Backend(cfg.OutputBackend), cfg.OutputSampleRate, cfg.OutputChannels)
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to configure audio output")
	}

	var metrics live.Metrics = &live.NoOpMetrics{}
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.DefaultRegisterer)
	}

	sessionCfg := live.DefaultConfig()
	sessionCfg.Model = cfg.Model
	sessionCfg.Language = cfg.Language
	sessionCfg.OutputSampleRate = cfg.OutputSampleRate
	sessionCfg.Capture = capture.Config{
		SampleRate: cfg.InputSampleRate,
		FrameSize:  cfg.FrameSize,
		Gate: capture.GateConfig{
			Threshold: cfg.EchoGateThreshold,
			Hangover:  cfg.EchoGateHangover(),
		},
	}

	session := live.NewSessionWithLogger(dialer, capture.OpenMalgoInput, speaker, sessionCfg, logger, metrics)
	defer session.Close()

	if cfg.UIAddr != "" {
		opts := uiserver.Options{Logger: logger}
		if cfg.MetricsEnabled {
			opts.Gatherer = prometheus.DefaultGatherer
		}
		ui := uiserver.New(session, opts)
		go func() {
			if err := ui.ListenAndServe(ctx, cfg.UIAddr); err != nil {
				zl.Error().Err(err).Msg("ui server stopped")
			}
		}()
		zl.Info().Str("addr", cfg.UIAddr).Msg("ui server listening")
	}

	fmt.Println("Welcome to LinguaMaster AI!")
	fmt.Printf("Channel: %s | Model: %s | Output: %s\n", dialer.Name(), cfg.Model, cfg.OutputBackend)

	input := bufio.NewScanner(os.Stdin)
	if session.Language() == "" {
		fmt.Print("What is your native language? ")
		if !input.Scan() {
			return
		}
		session.SetLanguage(strings.TrimSpace(input.Text()))
	}

	fmt.Printf("Native language: %s\n", session.Language())
	fmt.Println("Press Enter to start or stop, 'lang <name>' to change language, 'q' to quit.")
	fmt.Println(session.Status().Text())

	go renderEvents(session)
	go renderMeter(ctx, session)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for input.Scan() {
			lines <- strings.TrimSpace(input.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\nShutting down...\n")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !handleCommand(ctx, session, line, zl) {
				fmt.Printf("\nGoodbye!\n")
				return
			}
		}
	}
}

func newDialer(ctx context.Context, cfg *config.Config, logger live.Logger) (live.Dialer, error) {
	switch cfg.Channel {
	case config.ChannelRelay:
		return relay.NewDialer(cfg.RelayURL, cfg.APIKey, logger)
	default:
		return gemini.NewDialer(ctx, cfg.APIKey, logger)
	}
}

func handleCommand(ctx context.Context, session *live.Session, line string, zl zerolog.Logger) bool {
	switch {
	case line == "q" || line == "quit":
		return false
	case strings.HasPrefix(line, "lang "):
		lang := strings.TrimSpace(strings.TrimPrefix(line, "lang "))
		if lang == "" {
			fmt.Println("Usage: lang <name>")
			return true
		}
		session.SetLanguage(lang)
		fmt.Printf("\r\033[KNative language: %s\n", lang)
	case line == "history":
		for i, turn := range session.History() {
			fmt.Printf("%d. [YOU] %s\n   [TOBY] %s\n", i+1, turn.UserInput, turn.ModelOutput)
		}
	case line == "clear":
		session.ClearHistory()
		fmt.Println("History cleared.")
	case line == "":
		if err := session.Toggle(ctx); err != nil {
			zl.Debug().Err(err).Msg("toggle failed")
		}
	default:
		fmt.Println("Unknown command. Press Enter to start or stop, 'lang <name>', 'history', 'clear' or 'q'.")
	}
	return true
}

func renderEvents(session *live.Session) {
	for event := range session.Events() {
		switch event.Type {
		case live.StatusChanged:
			status := event.Data.(live.Status)
			fmt.Printf("\r\033[K● %s\n", status.Text())
		case live.TurnFinalized:
			turn := event.Data.(live.Turn)
			if strings.TrimSpace(turn.UserInput) != "" {
				fmt.Printf("\r\033[K[YOU] %s\n", strings.TrimSpace(turn.UserInput))
			}
			if strings.TrimSpace(turn.ModelOutput) != "" {
				fmt.Printf("\r\033[K[TOBY] %s\n", strings.TrimSpace(turn.ModelOutput))
			}
		case live.DecodeFailed:
			fmt.Printf("\r\033[K[AUDIO] skipped a bad audio chunk\n")
		case live.ErrorEvent:
			fmt.Printf("\r\033[K[ERROR] %v\n", event.Data)
		}
	}
}

// renderMeter draws the microphone level while the tutor is listening.
func renderMeter(ctx context.Context, session *live.Session) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap := session.Snapshot()
		if snap.Status != live.StatusListening {
			continue
		}
		dots := int(snap.MicLevel * 200)
		if dots > 40 {
			dots = 40
		}
		partial := snap.Current.UserInput
		if len(partial) > 30 {
			partial = "..." + partial[len(partial)-27:]
		}
		fmt.Printf("\r[MIC: %-40s] %s", strings.Repeat("|", dots), partial)
	}
}
