package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/apiclient"
	appcfg "github.com/park285/Cheese-Xiangqi/internal/config"
	"github.com/park285/Cheese-Xiangqi/internal/peer"
	"github.com/park285/Cheese-Xiangqi/internal/relay"
	"github.com/park285/Cheese-Xiangqi/internal/session"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	failed := false

	client := apiclient.New(cfg.APIBaseURL, apiclient.WithTimeout(8*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h, err := client.Health(ctx)
	if err != nil {
		log.Printf("api %s error: %v", cfg.APIBaseURL, err)
		failed = true
	} else {
		log.Printf("api ok: status=%s sessions=%d", h.Status, h.Sessions)
	}

	if cfg.RelayURL == "" {
		log.Println("RELAY_URL not set; skipping relay check")
	} else if !checkRelay(cfg.RelayURL) {
		failed = true
	}
	if failed {
		os.Exit(1)
	}
}

// checkRelay connects as a peer and watches for a few seconds.
func checkRelay(url string) bool {
	sess := session.New(session.WithLogger(zap.NewNop()))
	link := peer.NewLink(url, sess,
		peer.WithHeader(relay.HeaderPlayerID, fmt.Sprintf("xqcheck-%d", os.Getpid())),
		peer.WithLinkLogger(zap.NewNop()),
	)
	link.OnStateChange(func(state peer.LinkState) {
		log.Printf("relay state: %s", state)
	})
	link.OnMessage(func(msg peer.Message) {
		log.Printf("relay frame: %s %s", msg.Type, string(msg.Data))
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := link.Connect(cctx); err != nil {
		log.Printf("relay connect error: %v", err)
		return false
	}

	t := time.NewTimer(3 * time.Second)
	<-t.C
	ok := link.State() == peer.StateConnected
	_ = link.Close(context.Background())
	return ok
}
