package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vigilcell/vigil/internal/bus"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat through the running gateway",
	Run:   runChat,
}

func runChat(cmd *cobra.Command, args []string) {
	queue := openQueue()
	defer queue.Close()

	sessionID := "cli:" + uuid.NewString()
	color.Green("Vigil direct chat. Type 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	you := color.CyanString("You>")
	bot := color.RedString("Vigil>")

	for {
		fmt.Printf("%s ", you)
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return
		}

		env := bus.Envelope{Source: "cli", Content: input, SessionID: sessionID}
		if err := queue.PushJSON(bus.Inbox, env); err != nil {
			fmt.Printf("Send failed: %v\n", err)
			continue
		}

		// Ack first, then the real reply.
		for i := 0; i < 2; i++ {
			msg, err := queue.Pop(cmd.Context(), bus.CLIOut, 2*time.Minute)
			if err != nil {
				fmt.Println("No response. Is the gateway running?")
				break
			}
			fmt.Printf("%s %s\n", bot, msg)
		}
	}
}
