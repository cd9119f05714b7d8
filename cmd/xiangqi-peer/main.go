package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	appcfg "github.com/park285/Cheese-Xiangqi/internal/config"
	"github.com/park285/Cheese-Xiangqi/internal/msgcat"
	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"github.com/park285/Cheese-Xiangqi/internal/peer"
	"github.com/park285/Cheese-Xiangqi/internal/relay"
	"github.com/park285/Cheese-Xiangqi/internal/session"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	// stdout is for the board; logs go to LOG_FILE or stderr
	cfg.Log.Console = false
	if err := obslog.Init(cfg.Log); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	mode := flag.String("mode", "local", "local (hot-seat) or net (play through the relay)")
	sideFlag := flag.String("side", "red", "side at the bottom in local mode")
	relayURL := flag.String("relay", cfg.RelayURL, "relay websocket url")
	playerID := flag.String("id", "", "player id sent to the relay")
	playerName := flag.String("name", "", "display name sent to the relay")
	glyphs := flag.Bool("glyphs", false, "draw pieces with CJK characters")
	flag.Parse()

	msgs, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		log.Fatalf("messages: %v", err)
	}
	sess := session.New(session.WithTrustRemotePeer(cfg.TrustRemotePeer))
	ui := newConsole(os.Stdout, sess, msgs, *glyphs)
	sess.OnMoveApplied(ui.onMove)
	sess.OnGameEnded(ui.onEnd)

	var link *peer.Link
	switch *mode {
	case "net":
		opts := []peer.LinkOption{}
		if *playerID != "" {
			opts = append(opts, peer.WithHeader(relay.HeaderPlayerID, *playerID))
		}
		if *playerName != "" {
			opts = append(opts, peer.WithHeader(relay.HeaderPlayerName, *playerName))
		}
		link = peer.NewLink(*relayURL, sess, opts...)
		link.OnMessage(ui.onFrame)
		link.OnStateChange(func(st peer.LinkState) {
			if st == peer.StateDisconnected {
				ui.say(msgs.Text("peer.disconnected", nil))
			}
		})
		ui.say(msgs.Text("peer.connecting", map[string]any{"URL": *relayURL}))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := link.Connect(ctx)
		cancel()
		if err != nil {
			log.Fatalf("relay connect error: %v", err)
		}
		defer func() { _ = link.Close(context.Background()) }()
	case "local":
		side, err := xiangqi.ParseSide(*sideFlag)
		if err != nil {
			log.Fatalf("side: %v", err)
		}
		sess.Start(side, false)
		ui.started()
	default:
		log.Fatalf("unknown mode %q", *mode)
	}

	ui.say(msgs.Text("peer.help", nil))
	sc := bufio.NewScanner(os.Stdin)
	for ui.prompt(); sc.Scan(); ui.prompt() {
		if !ui.command(strings.TrimSpace(sc.Text())) {
			return
		}
	}
}
