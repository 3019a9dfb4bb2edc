package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vigilcell/vigil/internal/agents"
	"github.com/vigilcell/vigil/internal/bridge"
	"github.com/vigilcell/vigil/internal/bus"
	"github.com/vigilcell/vigil/internal/channels"
	"github.com/vigilcell/vigil/internal/config"
	"github.com/vigilcell/vigil/internal/logging"
	"github.com/vigilcell/vigil/internal/monitor"
	"github.com/vigilcell/vigil/internal/orchestrator"
	"github.com/vigilcell/vigil/internal/provider"
	"github.com/vigilcell/vigil/internal/scraper"
	"github.com/vigilcell/vigil/internal/store"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the orchestrator, monitors, and front-end bridges",
	Run:   runGateway,
}

func runGateway(cmd *cobra.Command, args []string) {
	color.Cyan(logo)
	fmt.Println("Starting vigil gateway...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Color)

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		fmt.Printf("Data dir error: %v\n", err)
		os.Exit(1)
	}

	queue, err := bus.Open(cfg.QueuePath(), bus.WithPollInterval(cfg.Queue.PollInterval))
	if err != nil {
		fmt.Printf("Queue error: %v\n", err)
		os.Exit(1)
	}
	defer queue.Close()

	st, err := store.Open(cfg.StorePath())
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	gateway := provider.NewGateway(cfg.LLM)

	wallets := monitor.NewWalletMonitor(cfg.Monitors.MarketWSURL, cfg.Monitors.Wallets, queue, st)
	market := monitor.NewMarketMonitor(cfg.Monitors.MarketAPIURL, cfg.Monitors.Coin, queue)
	digester := monitor.NewMediaDigester(st)
	discovery := scraper.New(cfg.Monitors.LeaderboardURL, st)

	crypto := agents.NewCryptoAgent(st, queue, gateway, wallets, market, discovery)
	media := agents.NewMediaAgent(st, queue, digester, cfg.Monitors.MediaWatchlist)

	orch := orchestrator.New(orchestrator.Config{
		Queue:       queue,
		Store:       st,
		Gateway:     gateway,
		Agents:      []agents.Agent{crypto, media},
		Prices:      crypto,
		Spot:        monitor.NewPriceAPI(cfg.Monitors.PriceAPIURL),
		Coin:        cfg.Monitors.Coin,
		ProjectRoot: cfg.Paths.ProjectRoot,
		HistoryN:    cfg.LLM.HistoryN,
		IdleSleep:   cfg.Queue.PollInterval,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Channels.Telegram.Enabled {
		go channels.NewTelegram(cfg.Channels.Telegram.Token, queue).Run(ctx)
	}
	if cfg.Channels.Slack.Enabled {
		go channels.NewSlack(cfg.Channels.Slack.BotToken, cfg.Channels.Slack.AppToken, queue).Run(ctx)
	}
	if cfg.Channels.Web.Enabled {
		go channels.NewWeb(cfg.Channels.Web.Addr, queue).Run(ctx)
	}
	if cfg.Bridge.Enabled {
		brokers := strings.Split(cfg.Bridge.Brokers, ",")
		go bridge.NewMirror(queue, bus.CLIOut, brokers, cfg.Bridge.Topic).Run(ctx)
	}

	go orch.Run(ctx)

	color.Green("Gateway online. Ctrl+C to stop.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("\nShutting down...")
	orch.Stop()
	cancel()
}
