package console

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"imu-recorder/internal/models"
)

// Console reads one command per line from a local text stream
type Console struct {
	in          io.Reader
	CommandChan chan *models.Command
	sendTimeout time.Duration
}

// New creates a console reading from in
func New(in io.Reader, commandChan chan *models.Command) *Console {
	return &Console{
		in:          in,
		CommandChan: commandChan,
		sendTimeout: time.Second,
	}
}

// Start forwards non-empty lines until the stream ends or ctx is cancelled
func (c *Console) Start(ctx context.Context) {
	log.Info("Console: Starting...")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Errorf("Console: read failed: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Console: Context cancelled, shutting down...")
			return

		case line, ok := <-lines:
			if !ok {
				log.Info("Console: input closed")
				return
			}

			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			cmd := &models.Command{Text: text, Source: models.SourceLocal, ReceivedAt: time.Now()}
			select {
			case c.CommandChan <- cmd:
			case <-time.After(c.sendTimeout):
				log.Warnf("Console: command channel full, dropping %q", text)
			case <-ctx.Done():
				return
			}
		}
	}
}
