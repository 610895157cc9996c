// Package prompts manages the system prompt for the inbox agent. A built-in
// prompt ships with the binary; operators can override it with a file and,
// optionally, have edits picked up while the server runs.
package prompts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/maildeskhq/maildesk/internal/observability"
)

// defaultSystemPrompt drives the support agent. The answer conventions here
// (fenced json facts, fenced reply block, Tags line) are what the extractor
// parses, so changes to either side have to stay in sync.
const defaultSystemPrompt = `You are the assistant of a German e-commerce customer support team. You receive one customer email at a time and prepare it for the support dashboard.

Use the available tools to look up the sender in the CRM: customer profile, order history, shipment status, and open support tickets. Prefer tool results over guesses. If a lookup returns nothing, say so instead of inventing data.

When you are done, answer in exactly this structure:

1. A short summary of the customer's request in German, at most two sentences.

2. A fenced code block labelled json containing the key facts:

` + "```json" + `
[
  {"label": "Kunde", "value": "Max Mustermann", "icon": "person"},
  {"label": "Offene Tickets", "value": "2", "icon": "ticket"}
]
` + "```" + `

Use only these German labels: Kunde, Kundennummer, Firma, E-Mail, Telefon, Mobil, Straße, PLZ/Ort, Kunde seit, Umsatz, Bestellungen, Letzte Bestellung, Zahlungsart, Sendungsnummer, Versandstatus, Offene Tickets, Anliegen, Empfohlene Aktion.
Use only these icons: person, building, mail, phone, home, calendar, euro, package, truck, ticket, credit-card, alert, check, info.
Keep values short. Only "Anliegen" and "Empfohlene Aktion" may hold a full sentence.

3. A fenced code block labelled reply with a suggested answer to the customer. Write it in German, use the formal "Sie", and keep it friendly and concrete.

4. A final line "Tags:" followed by two to four lowercase German keywords separated by commas, for example: Tags: versand, reklamation

Answer in German. Do not add anything outside this structure.`

// Manager serves the current system prompt.
type Manager struct {
	mu     sync.RWMutex
	system string

	path    string
	logger  *observability.Logger
	watcher *fsnotify.Watcher
}

// NewManager creates a prompt manager. When path is empty the built-in
// prompt is used; otherwise the file's content replaces it.
func NewManager(path string, logger *observability.Logger) (*Manager, error) {
	m := &Manager{
		system: defaultSystemPrompt,
		path:   path,
		logger: logger,
	}
	if path != "" {
		if err := m.Reload(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// System returns the current system prompt.
func (m *Manager) System() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.system
}

// Reload re-reads the override file. An empty or whitespace-only file falls
// back to the built-in prompt.
func (m *Manager) Reload() error {
	if m.path == "" {
		return nil
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read prompt file: %w", err)
	}

	prompt := strings.TrimSpace(string(data))
	m.mu.Lock()
	if prompt == "" {
		m.system = defaultSystemPrompt
	} else {
		m.system = prompt
	}
	m.mu.Unlock()
	return nil
}

// Watch reloads the prompt whenever the override file changes. It watches
// the containing directory so editor rename-and-replace saves are seen.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch prompt directory: %w", err)
	}
	m.mu.Lock()
	m.watcher = watcher
	m.mu.Unlock()

	go m.watchLoop(ctx, watcher)
	return nil
}

// Close stops watching.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		err := m.watcher.Close()
		m.watcher = nil
		return err
	}
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var mu sync.Mutex
	var timer *time.Timer
	debounce := 200 * time.Millisecond

	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			if err := m.Reload(); err != nil {
				if m.logger != nil {
					m.logger.Warn(ctx, "prompt reload failed", "path", m.path, "error", err)
				}
				return
			}
			if m.logger != nil {
				m.logger.Info(ctx, "prompt reloaded", "path", m.path)
			}
		})
	}

	target := filepath.Clean(m.path)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if m.logger != nil {
				m.logger.Warn(ctx, "prompt watch error", "error", err)
			}
		}
	}
}
