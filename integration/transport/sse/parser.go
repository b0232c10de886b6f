package sse

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/dmitrymomot/realtime/core/stream"
)

// defaultEvent is the event name of frames without an event field.
const defaultEvent = "message"

// parser decodes text/event-stream frames line by line.
// Unknown fields, retry included, are ignored.
type parser struct {
	r      *bufio.Reader
	lastID string
}

func (p *parser) reset(r io.Reader) {
	p.r = bufio.NewReader(r)
}

// next returns the next complete frame. A frame is complete at a blank line;
// a trailing frame cut off by end of stream is discarded.
// Blocks that carry neither an event name nor data are skipped.
func (p *parser) next() (stream.Message, error) {
	var (
		event   string
		data    []byte
		hasData bool
	)

	for {
		line, err := p.r.ReadString('\n')
		if err != nil {
			return stream.Message{}, err
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			if event == "" && !hasData {
				continue
			}
			if event == "" {
				event = defaultEvent
			}
			return stream.Message{
				ID:         p.lastID,
				Event:      stream.EventType(event),
				Data:       data,
				ReceivedAt: time.Now(),
			}, nil
		}

		if line[0] == ':' {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			event = value
		case "data":
			if hasData {
				data = append(data, '\n')
			}
			data = append(data, value...)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				p.lastID = value
			}
		}
	}
}
