package main

import (
	"fmt"
	"os"
	"time"

	"github.com/berfenger/meshcard/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "meshcard-tui",
	Short: "Show the Meshtastic node card in the terminal",
	Long: `Polls a running meshcard API and renders the node card.

Keys: n/enter/space toggles the online node list, r refreshes, q quits.`,
	Example: `  meshcard-tui --url http://localhost:8080
  meshcard-tui --url http://homeserver:8080 --interval 5s`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval := viper.GetDuration("interval")
		if interval < time.Second {
			return fmt.Errorf("interval must be at least 1s, got %s", interval)
		}
		client := tui.NewClient(viper.GetString("url"), interval)
		_, err := tea.NewProgram(tui.NewModel(client, interval)).Run()
		return err
	},
}

func init() {
	rootCmd.Flags().String("url", "http://localhost:8080", "meshcard API base url")
	rootCmd.Flags().Duration("interval", 5*time.Second, "refresh interval")

	viper.SetEnvPrefix("meshcard_tui")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("url", rootCmd.Flags().Lookup("url"))
	_ = viper.BindPFlag("interval", rootCmd.Flags().Lookup("interval"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
