package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vigilcell/vigil/internal/bus"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Tail orchestrator and monitor output",
	Run:   runListen,
}

func runListen(cmd *cobra.Command, args []string) {
	queue := openQueue()
	defer queue.Close()

	color.Yellow("Listening for responses... Ctrl+C to stop.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sig:
			fmt.Println("Stopping...")
			return
		default:
		}
		msg, err := queue.Pop(cmd.Context(), bus.CLIOut, time.Second)
		if errors.Is(err, bus.ErrEmpty) {
			continue
		}
		if err != nil {
			fmt.Printf("Listen error: %v\n", err)
			return
		}
		fmt.Printf("%s %s\n", color.BlueString("vigil>"), msg)
	}
}
