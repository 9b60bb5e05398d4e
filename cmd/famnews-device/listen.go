package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/famnews/famnews/internal/receiver"
)

// handleListen renders one notification per stdin line. Each line is treated
// as the raw bytes of a push delivery, so piping server payloads through it
// previews exactly what a device would show.
func handleListen(ctx context.Context, origin string) error {
	r, err := receiver.New(newTerminalNotifier(), &terminalWindowManager{}, origin)
	if err != nil {
		return err
	}

	events := make(chan receiver.Event)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case events <- receiver.Event{Push: []byte(scanner.Text())}:
			case <-ctx.Done():
				return
			}
		}
	}()

	r.Run(ctx, events)
	return nil
}

type terminalNotifier struct {
	title *color.Color
	body  *color.Color
	meta  *color.Color
}

func newTerminalNotifier() *terminalNotifier {
	return &terminalNotifier{
		title: color.New(color.FgCyan, color.Bold),
		body:  color.New(color.FgWhite),
		meta:  color.New(color.FgHiBlack),
	}
}

func (n *terminalNotifier) Show(_ context.Context, notification *receiver.Notification) error {
	n.title.Println(notification.Title)
	n.body.Println(notification.Body)
	actions := make([]string, 0, len(notification.Actions))
	for _, a := range notification.Actions {
		actions = append(actions, fmt.Sprintf("[%s]", a.Title))
	}
	n.meta.Printf("→ %s  %s\n\n", notification.URL, strings.Join(actions, " "))
	return nil
}

func (n *terminalNotifier) Close(_ context.Context, tag string) error {
	return nil
}

type terminalWindow struct {
	url string
}

func (w *terminalWindow) URL() string { return w.url }

func (w *terminalWindow) Navigate(_ context.Context, target string) error {
	fmt.Printf("navigate: %s\n", target)
	return nil
}

func (w *terminalWindow) Focus(context.Context) error {
	fmt.Println("focus")
	return nil
}

type terminalWindowManager struct {
	windows []receiver.Window
}

func (m *terminalWindowManager) Windows(context.Context) ([]receiver.Window, error) {
	return m.windows, nil
}

func (m *terminalWindowManager) OpenWindow(_ context.Context, target string) error {
	fmt.Printf("open window: %s\n", target)
	return nil
}
