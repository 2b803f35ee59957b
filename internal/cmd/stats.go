package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/config"
	"github.com/BioHazard786/warpchat/internal/dns"
	"github.com/BioHazard786/warpchat/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagStatsDomain string
	flagStatsURL    string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many people are online and waiting",
	Long: `Query the relay's /stats endpoint.

Examples:
  warpchat stats
  warpchat stats --url ws://localhost:8080/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{Domain: flagStatsDomain, URL: flagStatsURL})
		if err != nil {
			return chat.NewError("load config", err)
		}

		stop := ui.RunConnectionSpinner("Contacting relay...")
		stats, err := fetchStats(cmd, cfg.StatsURL())
		stop()
		if err != nil {
			return err
		}

		ui.RenderRelayStats(os.Stdout, cfg.StatsURL(), stats)
		return nil
	},
}

func fetchStats(cmd *cobra.Command, statsURL string) (ui.RelayStats, error) {
	var stats ui.RelayStats

	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: &http.Transport{DialContext: dns.DialContext, Proxy: http.ProxyFromEnvironment},
	}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, statsURL, nil)
	if err != nil {
		return stats, chat.NewError("fetch stats", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return stats, chat.NewError("fetch stats", fmt.Errorf("%w: %v", chat.ErrTransportUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stats, chat.WrapError("fetch stats", chat.ErrTransportUnavailable, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return stats, chat.NewError("decode stats", err)
	}
	return stats, nil
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVarP(&flagStatsDomain, "domain", "d", "", "Custom relay domain")
	statsCmd.Flags().StringVar(&flagStatsURL, "url", "", "Relay websocket URL (overrides --domain)")
}
