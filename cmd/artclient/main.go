package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"artclient/internal/api"
	"artclient/internal/config"
	"artclient/internal/credstore"
	"artclient/internal/domain"
	"artclient/internal/security"
	"artclient/internal/session"
	"artclient/internal/state"
	"artclient/internal/transport"
)

func main() {
	email := flag.String("email", "", "login email (omit to resume a stored session)")
	password := flag.String("password", "", "login password")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	encryptor, err := security.NewEncryptor([]byte(cfg.DeviceSecret))
	if err != nil {
		log.Fatalf("failed to initialize encryptor: %v", err)
	}

	// Fall back to an in-memory session when local storage is unusable.
	var creds domain.CredentialStore
	store, err := credstore.Open(filepath.Join(cfg.StateDir, "credentials.db"), encryptor)
	if err != nil {
		log.Printf("credential store unavailable, continuing in memory: %v", err)
		creds = credstore.NewMemory()
	} else {
		defer store.Close()
		creds = store
	}

	apiClient := api.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout)
	connector := transport.NewConnector(transport.Options{
		URL:               cfg.SocketURL,
		BackoffBase:       cfg.ReconnectBase,
		BackoffCap:        cfg.ReconnectCap,
		BackoffJitter:     cfg.ReconnectJitter,
		BackoffResetAfter: cfg.ReconnectResetAfter,
	})

	mgr := session.NewManager(creds, apiClient, connector,
		state.NewConversationStore(), state.NewNotificationStore())
	mgr.SetOnChange(func() { render(mgr) })

	ctx := context.Background()
	if *email != "" {
		if err := mgr.Login(ctx, *email, *password); err != nil {
			log.Fatalf("login: %v", err)
		}
	} else {
		resumed, err := mgr.Resume(ctx)
		if err != nil {
			log.Fatalf("resume: %v", err)
		}
		if !resumed {
			log.Fatal("no stored session; pass -email and -password to log in")
		}
	}
	defer mgr.Logout()

	if sess, ok := mgr.Session(); ok {
		log.Printf("logged in as %s (%s)", sess.Username, sess.UserID)
	}
	if mgr.StorageDegraded() {
		log.Print("warning: session will not survive a restart")
	}

	go readCommands(ctx, mgr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Print("shutting down")
}

// render prints a one-line status summary whenever observable state
// changes; a real client would re-render its screens here instead.
func render(mgr *session.Manager) {
	fmt.Printf("[%s|%s] conversations=%d unread=%d\n",
		mgr.State(), mgr.ConnectionState(), len(mgr.Conversations()), mgr.UnreadCount())
}

// readCommands runs a tiny intent loop on stdin:
//
//	open <conversationId>
//	send <conversationId> <text>
//	read <notificationId>
//	ls
func readCommands(ctx context.Context, mgr *session.Manager) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.SplitN(strings.TrimSpace(scanner.Text()), " ", 3)
		switch fields[0] {
		case "open":
			if len(fields) < 2 {
				continue
			}
			if err := mgr.OpenConversation(ctx, fields[1]); err != nil {
				log.Printf("open: %v", err)
			}
		case "send":
			if len(fields) < 3 {
				continue
			}
			if _, err := mgr.SendMessage(ctx, fields[1], fields[2]); err != nil {
				log.Printf("send: %v", err)
			}
		case "read":
			if len(fields) < 2 {
				continue
			}
			mgr.MarkRead(ctx, fields[1])
		case "ls":
			for _, conv := range mgr.Conversations() {
				last := ""
				if n := len(conv.Messages); n > 0 {
					last = conv.Messages[n-1].Content
				}
				fmt.Printf("%s  (%d messages)  %s\n", conv.ID, len(conv.Messages), last)
			}
		}
	}
}
