package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/config"
)

// waitCmd represents the wait command
var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for the browsing server to be ready",
	Long: `Wait for the browsing server to be ready by polling the status endpoint.

Example:
  dmctl wait
  dmctl wait --port 3000 --retries 60`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = config.Get().Port
		}
		retries, _ := cmd.Flags().GetInt("retries")

		if err := waitForServer(port, retries); err != nil {
			return fmt.Errorf("server did not become ready: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().IntP("port", "p", 0, "server port to check (default from configuration)")
	waitCmd.Flags().IntP("retries", "r", 90, "number of retries")
}

func waitForServer(port, retries int) error {
	url := fmt.Sprintf("http://localhost:%d/", port)
	client := &http.Client{Timeout: 2 * time.Second}

	fmt.Println("Waiting for the server to be ready...")

	for i := 0; i < retries; i++ {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode < 300 {
				fmt.Println()
				fmt.Println("Server is ready!")
				return nil
			}
		}

		fmt.Print(".")
		time.Sleep(1 * time.Second)
	}

	fmt.Println()
	return fmt.Errorf("not ready after %d seconds", retries)
}
