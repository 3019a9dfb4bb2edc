package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vigilcell/vigil/internal/bus"
	"github.com/vigilcell/vigil/internal/config"
)

var sendWait bool

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send a message to the orchestrator queue",
	Args:  cobra.ArbitraryArgs,
	Run:   runSend,
}

func init() {
	sendCmd.Flags().BoolVarP(&sendWait, "wait", "w", false, "wait for the response")
}

func runSend(cmd *cobra.Command, args []string) {
	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" {
		fmt.Println("Nothing to send.")
		os.Exit(1)
	}

	queue := openQueue()
	defer queue.Close()

	env := bus.Envelope{Source: "cli", Content: message, SessionID: "cli:" + uuid.NewString()}
	if err := queue.PushJSON(bus.Inbox, env); err != nil {
		fmt.Printf("Send failed: %v\n", err)
		os.Exit(1)
	}
	color.Green("Sent: %s", message)

	if !sendWait {
		return
	}
	// First pop is the processing acknowledgement, second the reply.
	for i := 0; i < 2; i++ {
		msg, err := queue.Pop(cmd.Context(), bus.CLIOut, 2*time.Minute)
		if err != nil {
			fmt.Println("No response received.")
			return
		}
		fmt.Println(msg)
	}
}

// openQueue loads config and opens the queue database, exiting on failure.
func openQueue() *bus.Queue {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		fmt.Printf("Data dir error: %v\n", err)
		os.Exit(1)
	}
	queue, err := bus.Open(cfg.QueuePath(), bus.WithPollInterval(cfg.Queue.PollInterval))
	if err != nil {
		fmt.Printf("Queue error: %v\n", err)
		os.Exit(1)
	}
	return queue
}
