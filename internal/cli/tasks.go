package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var tasksLimit int

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Show recently delegated agent tasks",
	Run: func(cmd *cobra.Command, args []string) {
		st := openStore()
		defer st.Close()

		tasks, err := st.RecentTasks(tasksLimit)
		if err != nil {
			fmt.Printf("Task fetch failed: %v\n", err)
			os.Exit(1)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks recorded yet.")
			return
		}
		for _, task := range tasks {
			fmt.Printf("%s  %s  %s  %s\n",
				task.Timestamp.Format("2006-01-02 15:04:05"),
				color.CyanString("%-8s", task.Agent),
				color.GreenString("%-9s", task.Status),
				task.Task,
			)
		}
	},
}

func init() {
	tasksCmd.Flags().IntVarP(&tasksLimit, "limit", "n", 20, "number of tasks to show")
}
