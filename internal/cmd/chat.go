package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/config"
	"github.com/BioHazard786/warpchat/internal/logging"
	"github.com/BioHazard786/warpchat/internal/media"
	"github.com/BioHazard786/warpchat/internal/negotiator"
	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/BioHazard786/warpchat/internal/transport"
	"github.com/BioHazard786/warpchat/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	flagDomain    string
	flagURL       string
	flagSTUN      string
	flagTURN      string
	flagTURNUser  string
	flagTURNPass  string
	flagInterests []string
	flagHandle    string
	flagKeepAlive time.Duration
	flagMsgpack   bool
	flagLogFile   string
)

var chatCmd = &cobra.Command{
	Use:     "chat",
	Aliases: []string{"c"},
	Short:   "Video chat with a random stranger",
	Long: `Connect to the relay and get paired with a stranger.

Examples:
  warpchat chat
  warpchat chat --interests chess,music --handle @me
  warpchat chat --url ws://localhost:8080/ws --log-file chat.log`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{
			Domain:     flagDomain,
			URL:        flagURL,
			STUNServer: flagSTUN,
			TURNServer: flagTURN,
			TURNUser:   flagTURNUser,
			TURNPass:   flagTURNPass,
			Interests:  flagInterests,
			Handle:     flagHandle,
			KeepAlive:  flagKeepAlive,
			Binary:     flagMsgpack,
		})
		if err != nil {
			return chat.NewError("load config", err)
		}

		if flagLogFile != "" {
			f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return chat.NewError("open log file", err)
			}
			defer f.Close()
			logging.InitTo(f, slog.LevelInfo)
		}

		return runChat(cmd.Context(), cfg)
	},
}

func runChat(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	codec := protocol.CodecFor(cfg.Binary)
	dial := func(ctx context.Context) (negotiator.Channel, error) {
		ch, err := transport.Connect(ctx, transport.Options{
			URL:       cfg.WebSocketURL,
			KeepAlive: cfg.KeepAlive,
			Codec:     codec,
		})
		if err != nil {
			slog.Warn("relay unreachable", "url", cfg.WebSocketURL, "err", err)
			return nil, err
		}
		return ch, nil
	}

	screen := &ui.Screen{}
	n := negotiator.New(negotiator.Options{
		Dial:         dial,
		Media:        &media.Provider{},
		Peers:        media.NewPeerFactory(cfg),
		Display:      screen,
		DemoDelayMin: cfg.DemoDelayMin,
		DemoDelayMax: cfg.DemoDelayMax,
		SkipDelay:    cfg.SkipDelay,
	})

	model := ui.NewChatModel(n, cfg.Interests, cfg.Handle)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	screen.Attach(program)

	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Run(ctx)
	}()
	n.Start(cfg.Interests, cfg.Handle)

	_, err := program.Run()
	cancel()
	<-done
	screen.Close()

	fmt.Println()
	ui.RenderSessionSummary(model.Summary())

	if err != nil && ctx.Err() == nil {
		return chat.NewError("run chat screen", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Custom relay domain")
	chatCmd.Flags().StringVar(&flagURL, "url", "", "Relay websocket URL (overrides --domain)")
	chatCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN servers, comma separated")
	chatCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	chatCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	chatCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	chatCmd.Flags().StringSliceVarP(&flagInterests, "interests", "i", nil, "Interests to match on, comma separated")
	chatCmd.Flags().StringVar(&flagHandle, "handle", "", "Handle shown to the stranger, e.g. @you")
	chatCmd.Flags().DurationVar(&flagKeepAlive, "keepalive", 0, "Keepalive interval (default 30s)")
	chatCmd.Flags().BoolVar(&flagMsgpack, "msgpack", false, "Use the binary msgpack envelope codec")
	chatCmd.Flags().StringVar(&flagLogFile, "log-file", "", "Write logs to this file instead of stderr")
}
