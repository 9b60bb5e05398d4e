package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/alecthomas/kingpin/v2"

	"github.com/famnews/famnews/internal/pushtransport"
	"github.com/famnews/famnews/internal/receiver"
	"github.com/famnews/famnews/internal/registrar"
	"github.com/famnews/famnews/pkg/apiclient"
	"github.com/famnews/famnews/pkg/storage"
)

var (
	app       = kingpin.New("famnews-device", "Device-side companion for the Family News push API")
	serverURL = app.Flag("server", "Push API base URL").Default("http://localhost:3200").Envar("FAMNEWS_SERVER_URL").String()
	apiKey    = app.Flag("api-key", "API key for the push API").Envar("FAMNEWS_API_KEY").String()
	stateDir  = app.Flag("state-dir", "Directory holding this device's channel state").Default(".famnews/device").Envar("FAMNEWS_DEVICE_STATE_DIR").String()

	keygenCmd = app.Command("keygen", "Generate a VAPID signing key pair for the server")

	subscribeCmd  = app.Command("subscribe", "Subscribe this device to push notifications")
	subscribeUser = subscribeCmd.Flag("user", "Member ID this device belongs to").Required().String()

	unsubscribeCmd  = app.Command("unsubscribe", "Unsubscribe this device")
	unsubscribeUser = unsubscribeCmd.Flag("user", "Member ID this device belongs to").Required().String()

	statusCmd  = app.Command("status", "Show this device's subscription state")
	statusUser = statusCmd.Flag("user", "Member ID this device belongs to").Required().String()

	sendCmd   = app.Command("send", "Broadcast a notification to all other members")
	sendUser  = sendCmd.Flag("user", "Acting member, excluded from delivery").Required().String()
	sendTitle = sendCmd.Flag("title", "Notification title").String()
	sendBody  = sendCmd.Flag("body", "Notification body").String()
	sendURL   = sendCmd.Flag("url", "Target URL opened on click").String()

	testCmd = app.Command("test", "Queue a server-side test notification")

	listenCmd    = app.Command("listen", "Render push payloads read from stdin")
	listenOrigin = listenCmd.Flag("origin", "App origin clicks navigate within").Default("http://localhost:3200").String()

	clickCmd       = app.Command("click", "Simulate a click on a rendered notification")
	clickAction    = clickCmd.Flag("action", "Clicked action (open or dismiss, empty for a body tap)").Default("").String()
	clickURL       = clickCmd.Flag("url", "URL carried by the notification").String()
	clickOrigin    = clickCmd.Flag("origin", "App origin clicks navigate within").Default("http://localhost:3200").String()
	clickWindowURL = clickCmd.Flag("window", "URL of an already-open app window, if any").String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case keygenCmd.FullCommand():
		err = handleKeygen()
	case subscribeCmd.FullCommand():
		err = handleSubscribe(ctx, *subscribeUser)
	case unsubscribeCmd.FullCommand():
		err = handleUnsubscribe(ctx, *unsubscribeUser)
	case statusCmd.FullCommand():
		err = handleStatus(ctx, *statusUser)
	case sendCmd.FullCommand():
		err = handleSend(ctx, *sendUser, *sendTitle, *sendBody, *sendURL)
	case testCmd.FullCommand():
		err = handleTest(ctx)
	case listenCmd.FullCommand():
		err = handleListen(ctx, *listenOrigin)
	case clickCmd.FullCommand():
		err = handleClick(ctx, *clickOrigin, *clickAction, *clickURL, *clickWindowURL)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func handleKeygen() error {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return fmt.Errorf("failed to generate VAPID keys: %w", err)
	}
	fmt.Printf("FAMNEWS_VAPID_PUBLIC_KEY=%s\n", publicKey)
	fmt.Printf("FAMNEWS_VAPID_PRIVATE_KEY=%s\n", privateKey)
	return nil
}

func newRegistrar(userID string) (*registrar.Registrar, error) {
	store, err := storage.NewLocalStorage(*stateDir)
	if err != nil {
		return nil, err
	}
	transport := pushtransport.NewFileTransport(store, *serverURL+"/push/devices")
	platform := &registrar.StaticPlatform{IsSupported: true, Perm: registrar.PermissionDefault}
	client := apiclient.New(*serverURL, *apiKey)
	return registrar.New(platform, transport, client, userID), nil
}

func handleSubscribe(ctx context.Context, userID string) error {
	reg, err := newRegistrar(userID)
	if err != nil {
		return err
	}
	status, err := reg.Subscribe(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Subscribed (endpoint: %s)\n", status.Endpoint)
	return nil
}

func handleUnsubscribe(ctx context.Context, userID string) error {
	reg, err := newRegistrar(userID)
	if err != nil {
		return err
	}
	if _, err := reg.Unsubscribe(ctx); err != nil {
		return err
	}
	fmt.Println("Unsubscribed")
	return nil
}

func handleStatus(ctx context.Context, userID string) error {
	reg, err := newRegistrar(userID)
	if err != nil {
		return err
	}
	status, err := reg.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Supported:  %t\n", status.Supported)
	fmt.Printf("Permission: %s\n", status.Permission)
	fmt.Printf("Subscribed: %t\n", status.Subscribed)
	if status.Endpoint != "" {
		fmt.Printf("Endpoint:   %s\n", status.Endpoint)
	}
	return nil
}

func handleSend(ctx context.Context, userID, title, body, url string) error {
	client := apiclient.New(*serverURL, *apiKey)
	result, err := client.Send(ctx, title, body, url, userID)
	if err != nil {
		return err
	}
	fmt.Printf("%s (sent: %d, failed: %d)\n", result.Message, result.Sent, result.Failed)
	return nil
}

func handleTest(ctx context.Context) error {
	client := apiclient.New(*serverURL, *apiKey)
	message, err := client.SendTest(ctx)
	if err != nil {
		return err
	}
	fmt.Println(message)
	return nil
}

func handleClick(ctx context.Context, origin, action, url, windowURL string) error {
	wm := &terminalWindowManager{}
	if windowURL != "" {
		wm.windows = append(wm.windows, &terminalWindow{url: windowURL})
	}
	r, err := receiver.New(newTerminalNotifier(), wm, origin)
	if err != nil {
		return err
	}
	return r.HandleClick(ctx, &receiver.Click{Action: action, URL: url})
}
