package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/r3labs/sse/v2"
)

// ReportsStream is the SSE stream id carrying live reports
const ReportsStream = "reports"

// Stream fans live reports out to Server-Sent Events subscribers
type Stream struct {
	s *sse.Server
}

func NewStream() *Stream {
	s := sse.New()
	s.AutoReplay = false
	s.CreateStream(ReportsStream)
	return &Stream{s: s}
}

// Publish sends v as a JSON "report" event to every subscriber
func (s *Stream) Publish(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	s.s.Publish(ReportsStream, &sse.Event{
		Event: []byte("report"),
		Data:  data,
	})
	return nil
}

// ServeHTTP handles GET /api/stream?stream=reports
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.s.ServeHTTP(w, r)
}

func (s *Stream) Close() {
	s.s.Close()
}
