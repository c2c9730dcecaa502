package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"github.com/prometheus/client_golang/prometheus"

	"voxeledit/internal/logging"
	"voxeledit/internal/session"
	"voxeledit/pkg/config"
	"voxeledit/pkg/history"
)

// REPL reads command lines and feeds them to an editing session
type REPL struct {
	session  *session.Session
	registry *prometheus.Registry
	rl       *readline.Instance
}

func completer() *readline.PrefixCompleter {
	items := make([]*readline.PrefixCompleter, 0, len(session.Commands())+1)
	for _, name := range session.Commands() {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("metrics"))
	return readline.NewPrefixCompleter(items...)
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func (repl *REPL) Open(historyFile string) (err error) {
	repl.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "voxel> ",
		HistoryFile:     historyFile,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return
	}
	repl.rl.CaptureExitSignal()
	return
}

func (repl *REPL) Close() error {
	if repl.rl != nil {
		_ = repl.rl.Close()
		repl.rl = nil
	}
	return nil
}

// REPL handles one line. It returns io.EOF when the session is over
func (repl *REPL) REPL() (out string, err error) {
	var line string
	line, err = repl.rl.Readline()
	if err == readline.ErrInterrupt && len(line) != 0 {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	line = strings.TrimSpace(line)
	switch line {
	case "":
		return "", nil
	case "metrics":
		return repl.metrics()
	}

	out, err = repl.session.Execute(line)
	if errors.Is(err, session.ErrQuit) {
		err = io.EOF
	}
	return
}

func (repl *REPL) metrics() (string, error) {
	families, err := repl.registry.Gather()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			value := m.GetGauge().GetValue() + m.GetCounter().GetValue()
			fmt.Fprintf(&b, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

func main() {
	configPath := flag.String("config", "voxeledit.yaml", "Path to the YAML configuration file")
	logLevel := flag.String("log-level", "", "Log level override: debug, info, warn or error")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file and exit")
	historyFile := flag.String("history-file", ".voxeledit_cmd_log.txt", "Readline history file")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to create config file: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger := logging.NewDefaultLogger(level)

	registry := prometheus.NewRegistry()
	registry.MustRegister(history.Collectors()...)

	s, err := session.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	logger.Info("session started",
		"size", cfg.Volume.Size,
		"type", cfg.Volume.PixelType,
		"config", *configPath)

	repl := REPL{session: s, registry: registry}
	if err := repl.Open(*historyFile); err != nil {
		log.Fatalf("Failed to open terminal: %v", err)
	}
	defer repl.Close()

	var out string
	for err != io.EOF {
		if err != nil {
			_, _ = fmt.Fprintf(os.Stdout, "%s\n", err.Error())
			err = nil
		} else if out != "" {
			_, _ = fmt.Fprintf(os.Stdout, "%s\n", out)
		}
		out, err = repl.REPL()
	}
}
