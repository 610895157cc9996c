package web

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/maildeskhq/maildesk/internal/events"
	"github.com/maildeskhq/maildesk/pkg/models"
)

func waitForSubscriber(t *testing.T, bus *events.Bus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no subscriber attached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSSEStreamsEvents(t *testing.T) {
	bus := events.NewBus(testLogger(), nil)
	h := testHandler(t, &Config{Bus: bus})
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/pipeline/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	waitForSubscriber(t, bus)
	bus.Publish(models.NewProgressEvent(1, 3, 0, &models.ItemDigest{ID: "m-1", Subject: "Test"}))

	type line struct {
		text string
		err  error
	}
	lines := make(chan line, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- line{text: scanner.Text()}
		}
		lines <- line{err: scanner.Err()}
	}()

	var eventLine, dataLine string
	deadline := time.After(3 * time.Second)
	for eventLine == "" || dataLine == "" {
		select {
		case l := <-lines:
			if l.err != nil {
				t.Fatalf("read: %v", l.err)
			}
			if strings.HasPrefix(l.text, "event: ") {
				eventLine = l.text
			}
			if strings.HasPrefix(l.text, "data: ") {
				dataLine = l.text
			}
		case <-deadline:
			t.Fatal("no event received")
		}
	}

	if eventLine != "event: progress" {
		t.Errorf("event line = %q", eventLine)
	}
	if !strings.Contains(dataLine, `"m-1"`) {
		t.Errorf("data line = %q", dataLine)
	}
}

func TestSSEMidRunReconnectGreeting(t *testing.T) {
	bus := events.NewBus(testLogger(), nil)
	bus.SetSnapshotProvider(func() (models.Job, bool) {
		return models.Job{Running: true, Mode: models.JobModeBatch, Total: 8, Processed: 5}, true
	})
	h := testHandler(t, &Config{Bus: bus})
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/pipeline/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		text := scanner.Text()
		if strings.HasPrefix(text, "event: ") {
			if text != "event: reconnect" {
				t.Errorf("first event = %q, want reconnect", text)
			}
			continue
		}
		if strings.HasPrefix(text, "data: ") {
			if !strings.Contains(text, `"processed":5`) {
				t.Errorf("reconnect data = %q, want current counters", text)
			}
			return
		}
	}
	t.Fatalf("stream ended without reconnect event: %v", scanner.Err())
}
