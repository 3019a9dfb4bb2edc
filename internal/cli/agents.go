package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vigilcell/vigil/internal/config"
	"github.com/vigilcell/vigil/internal/store"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Inspect and tune persisted agent configurations",
}

var agentsShowCmd = &cobra.Command{
	Use:   "show <agent-id>",
	Short: "Print an agent's system prompt and temperature",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st := openStore()
		defer st.Close()

		cfg, err := st.AgentConfig(args[0])
		if err != nil {
			fmt.Printf("Lookup failed: %v\n", err)
			os.Exit(1)
		}
		color.Cyan("agent:       %s", cfg.AgentID)
		color.Cyan("temperature: %.2f", cfg.Temperature)
		fmt.Println("prompt:")
		fmt.Println(cfg.SystemPrompt)
	},
}

var (
	agentsSetPrompt string
	agentsSetTemp   float64
)

var agentsSetCmd = &cobra.Command{
	Use:   "set <agent-id>",
	Short: "Update an agent's system prompt or temperature",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st := openStore()
		defer st.Close()

		cfg, err := st.AgentConfig(args[0])
		if err != nil {
			fmt.Printf("Lookup failed: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("prompt") {
			cfg.SystemPrompt = agentsSetPrompt
		}
		if cmd.Flags().Changed("temperature") {
			cfg.Temperature = agentsSetTemp
		}
		if err := st.UpsertAgentConfig(cfg); err != nil {
			fmt.Printf("Update failed: %v\n", err)
			os.Exit(1)
		}
		color.Green("Updated %s", cfg.AgentID)
	},
}

func init() {
	agentsSetCmd.Flags().StringVar(&agentsSetPrompt, "prompt", "", "new system prompt")
	agentsSetCmd.Flags().Float64Var(&agentsSetTemp, "temperature", 0, "new temperature")
	agentsCmd.AddCommand(agentsShowCmd)
	agentsCmd.AddCommand(agentsSetCmd)
}

// openStore loads config and opens the document store, exiting on failure.
func openStore() *store.Store {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		fmt.Printf("Data dir error: %v\n", err)
		os.Exit(1)
	}
	st, err := store.Open(cfg.StorePath())
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	return st
}
