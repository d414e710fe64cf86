package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"imu-recorder/internal/models"
)

const paramDelimiter = "~~"

// CommandKind is what a command asks the device to do
type CommandKind int

const (
	CommandStart CommandKind = iota
	CommandStop
	CommandHealth
)

// ParsedCommand is a recognized command
type ParsedCommand struct {
	Kind CommandKind

	// Set only by start commands carrying parameters
	SubjectID string
	TestType  string
}

// HasParams reports whether a start command carried its own metadata
func (p ParsedCommand) HasParams() bool {
	return p.SubjectID != ""
}

// ParseCommand recognizes a text command. Keywords are case-insensitive;
// parameters keep their case.
func ParseCommand(text string) (ParsedCommand, error) {
	text = strings.TrimSpace(text)

	if strings.Contains(text, paramDelimiter) {
		parts := strings.Split(text, paramDelimiter)
		if !isStartWord(parts[0]) {
			return ParsedCommand{}, fmt.Errorf("%w: %q", ErrUnknownCommand, text)
		}
		if len(parts) != 3 {
			return ParsedCommand{}, &CommandFormatError{
				Text:   text,
				Reason: fmt.Sprintf("expected 2 %q delimiters, found %d", paramDelimiter, len(parts)-1),
			}
		}

		subject := strings.TrimSpace(parts[1])
		testType := strings.TrimSpace(parts[2])
		if subject == "" || testType == "" {
			return ParsedCommand{}, &CommandFormatError{Text: text, Reason: "subject id and test type must not be empty"}
		}
		return ParsedCommand{Kind: CommandStart, SubjectID: subject, TestType: testType}, nil
	}

	switch {
	case isStartWord(text):
		return ParsedCommand{Kind: CommandStart}, nil
	case strings.EqualFold(text, "stop"), strings.EqualFold(text, "finish"):
		return ParsedCommand{Kind: CommandStop}, nil
	case strings.EqualFold(text, "check_error"):
		return ParsedCommand{Kind: CommandHealth}, nil
	}
	return ParsedCommand{}, fmt.Errorf("%w: %q", ErrUnknownCommand, text)
}

func isStartWord(s string) bool {
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, "init") || strings.EqualFold(s, "start")
}

// WindowController is the part of the scheduler the router drives
type WindowController interface {
	Start(ctx context.Context, req WindowRequest) (string, error)
	Cancel() bool
}

// HealthResponder answers health checks
type HealthResponder interface {
	Report(ctx context.Context) models.HealthReply
}

// RouterConfig holds the router settings
type RouterConfig struct {
	// Any message on this topic is a health check, whatever its payload
	HealthTopic string

	// Used for a start command without parameters, and for duration and
	// rate of every start
	Defaults WindowRequest
}

// Router maps text commands from the console and MQTT onto the scheduler
// and the health reporter
type Router struct {
	windows WindowController
	health  HealthResponder
	config  RouterConfig

	// Input channel (written by console and MQTT subscriber)
	CommandChan chan *models.Command
}

// NewRouter creates a router reading from commandChan
func NewRouter(windows WindowController, health HealthResponder, config RouterConfig, commandChan chan *models.Command) *Router {
	return &Router{
		windows:     windows,
		health:      health,
		config:      config,
		CommandChan: commandChan,
	}
}

// Start handles commands until ctx is cancelled or the channel is closed
func (r *Router) Start(ctx context.Context) {
	log.Info("CommandRouter: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Info("CommandRouter: Context cancelled, shutting down...")
			return

		case cmd, ok := <-r.CommandChan:
			if !ok {
				log.Info("CommandRouter: Command channel closed, shutting down...")
				return
			}

			if err := r.Handle(ctx, cmd); err != nil {
				log.WithField("source", cmd.Source).Warnf("CommandRouter: %v", err)
			}
		}
	}
}

// Handle executes one command. Errors leave the scheduler untouched.
func (r *Router) Handle(ctx context.Context, cmd *models.Command) error {
	if r.config.HealthTopic != "" && cmd.Topic == r.config.HealthTopic {
		r.reportHealth(ctx, cmd)
		return nil
	}

	parsed, err := ParseCommand(cmd.Text)
	if err != nil {
		return err
	}

	switch parsed.Kind {
	case CommandStart:
		req := r.config.Defaults
		if parsed.HasParams() {
			req.SubjectID = parsed.SubjectID
			req.TestType = parsed.TestType
		}

		id, err := r.windows.Start(ctx, req)
		if err != nil {
			if errors.Is(err, ErrAlreadyRunning) {
				return fmt.Errorf("%q rejected: %w", cmd.Text, err)
			}
			return fmt.Errorf("failed to start window: %w", err)
		}
		log.Infof("CommandRouter: %s start -> window %s", cmd.Source, id)

	case CommandStop:
		if !r.windows.Cancel() {
			log.Infof("CommandRouter: %s stop ignored, no window running", cmd.Source)
		}

	case CommandHealth:
		r.reportHealth(ctx, cmd)
	}
	return nil
}

func (r *Router) reportHealth(ctx context.Context, cmd *models.Command) {
	reply := r.health.Report(ctx)
	log.Infof("CommandRouter: %s health check -> %s %s", cmd.Source, reply.Status, reply.Message)
}
