// Command mapychat is a terminal client for the chat proxy.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/don-licenciao/MapyChat-web/internal/client"
	"github.com/don-licenciao/MapyChat-web/internal/guard"
	"github.com/don-licenciao/MapyChat-web/internal/model"
	"github.com/don-licenciao/MapyChat-web/internal/storage"
	"github.com/don-licenciao/MapyChat-web/internal/utils"
	"github.com/don-licenciao/MapyChat-web/pkg/logger"
)

func main() {
	var (
		endpoint    = flag.String("endpoint", "http://localhost:8080/api/chat", "chat proxy URL")
		modelName   = flag.String("model", "grok-4-fast-non-reasoning", "provider model")
		system      = flag.String("system", "You are a helpful assistant.", "system prompt")
		character   = flag.String("character", "", "optional character prompt")
		origin      = flag.String("origin", "", "Origin header to send, for proxies that enforce it")
		temperature = flag.Float64("temperature", -1, "sampling temperature, negative for the server default")
		dataDir     = flag.String("data-dir", defaultDataDir(), "where preferences are stored")
		maxImage    = flag.Int("max-image-bytes", 5*1024*1024, "largest image accepted locally")
		logLevel    = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()

	if err := logger.Init(*logLevel, "text"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	logger.SetOutput(os.Stderr)

	store := storage.NewDiskPreferences(*dataDir)
	if err := store.Init(); err != nil {
		logger.Fatalf("preferences: %v", err)
	}
	prefs := client.NewPreferences(store)

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 64<<10), 1<<20)

	if !prefs.AgeConfirmed() {
		fmt.Print("Confirm you are 18 or older [y/N]: ")
		if !in.Scan() || !strings.EqualFold(strings.TrimSpace(in.Text()), "y") {
			fmt.Println("Age confirmation is required.")
			os.Exit(1)
		}
		if err := prefs.SetAgeConfirmed(true); err != nil {
			logger.Warnf("could not store age confirmation: %v", err)
		}
	}

	opts := []client.Option{client.WithHTTPClient(utils.NewHTTPClient(time.Minute))}
	if *origin != "" {
		opts = append(opts, client.WithHeader("Origin", *origin))
	}

	settings := client.Settings{
		Model:           *modelName,
		SystemPrompt:    *system,
		CharacterPrompt: *character,
		MaxImageBytes:   *maxImage,
	}
	if *temperature >= 0 {
		settings.Temperature = temperature
	}

	conv := client.NewConversation()
	printer := &deltaPrinter{}
	conv.OnChange(printer.render)
	session := client.NewSession(client.New(*endpoint, opts...), guard.New(), prefs, conv, settings)

	var streaming atomic.Bool
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range sigs {
			if sig == syscall.SIGINT && streaming.Load() {
				session.Cancel()
				continue
			}
			fmt.Println()
			os.Exit(0)
		}
	}()

	fmt.Println("Type a message. Commands: /image <path>, /level <1-5>, /detail <auto|low|high>, /quit")
	var queued []client.QueuedImage
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())

		switch cmd, arg, _ := strings.Cut(line, " "); cmd {
		case "":
			continue
		case "/quit":
			return
		case "/image":
			img, err := client.LoadImage(strings.TrimSpace(arg), "")
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			queued = append(queued, img)
			fmt.Printf("queued %s (%d bytes)\n", img.Name, len(img.Data))
			continue
		case "/level":
			n, err := strconv.Atoi(strings.TrimSpace(arg))
			if err == nil {
				err = prefs.SetResponseLevel(n)
			}
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("response level:", prefs.ResponseLevel())
			continue
		case "/detail":
			if err := prefs.SetImageDetail(model.Detail(strings.TrimSpace(arg))); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("image detail:", prefs.ImageDetail())
			continue
		}

		printer.begin()
		streaming.Store(true)
		err := session.Send(context.Background(), line, queued)
		streaming.Store(false)
		fmt.Println()

		var v *guard.Violation
		switch {
		case errors.As(err, &v):
			fmt.Println("blocked by content policy:", v.Reason)
		case err != nil:
			fmt.Println("error:", err)
		default:
			queued = nil
		}
	}
}

// deltaPrinter writes only the new tail of the streaming assistant message.
type deltaPrinter struct {
	mu      sync.Mutex
	printed string
}

func (p *deltaPrinter) begin() {
	p.mu.Lock()
	p.printed = ""
	p.mu.Unlock()
}

func (p *deltaPrinter) render(msgs []model.ChatMessage) {
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != model.RoleAssistant {
		return
	}
	text := msgs[len(msgs)-1].PlainText()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !strings.HasPrefix(text, p.printed) {
		fmt.Print("\n[retrying]\n")
		p.printed = ""
	}
	fmt.Print(text[len(p.printed):])
	p.printed = text
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".mapychat"
	}
	return filepath.Join(dir, "mapychat")
}
