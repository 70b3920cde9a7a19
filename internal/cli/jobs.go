package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	apiAddr       string
	cancelReason  string
	decisionFixed bool
	decisionNotes string
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [job_id]",
	Short: "Cancel a job on a running deliveryd",
	Args:  cobra.ExactArgs(1),
	Run:   runCancel,
}

var decideCmd = &cobra.Command{
	Use:   "decide [session_id]",
	Short: "Record a human decision for an escalated recovery session",
	Args:  cobra.ExactArgs(1),
	Run:   runDecide,
}

func init() {
	for _, c := range []*cobra.Command{cancelCmd, decideCmd} {
		c.Flags().StringVar(&apiAddr, "addr", "", "deliveryd HTTP address (default http://localhost:<server.port>)")
		rootCmd.AddCommand(c)
	}
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "cancelled from cli", "cancellation reason")
	decideCmd.Flags().BoolVar(&decisionFixed, "fixed", false, "the fault was fixed and the stage should be retried")
	decideCmd.Flags().StringVar(&decisionNotes, "notes", "", "notes kept on the session")
}

func runCancel(cmd *cobra.Command, args []string) {
	body := map[string]string{"reason": cancelReason}
	post("/jobs/"+args[0]+"/cancel", body)
}

func runDecide(cmd *cobra.Command, args []string) {
	body := map[string]any{"fixed": decisionFixed, "notes": decisionNotes}
	post("/sessions/"+args[0]+"/decision", body)
}

func baseURL() string {
	if apiAddr != "" {
		return apiAddr
	}
	cfg := loadConfig()
	return fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
}

func post(path string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode request: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(baseURL()+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "deliveryd returned %s: %s\n", resp.Status, bytes.TrimSpace(out))
		os.Exit(1)
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, out, "", "  ") == nil {
		out = pretty.Bytes()
	}
	fmt.Println(string(out))
}
