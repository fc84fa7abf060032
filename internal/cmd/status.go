package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corvidae/pixback/internal/statuspub"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the daemon's last published status",
	Long: `Status reads data/status.json directly rather than talking to a
running process — it works whether or not a daemon is currently up.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw status document as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	dir := outputDir()
	data, err := os.ReadFile(statuspub.Path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no status published yet for %s (has the daemon ever run?)", dir)
		}
		return err
	}

	if statusJSON {
		fmt.Println(string(data))
		return nil
	}

	var st statuspub.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("parse status.json: %w", err)
	}

	fmt.Printf("state:            %s\n", st.State)
	if st.Phase != "" {
		fmt.Printf("phase:            %s\n", st.Phase)
	}
	fmt.Printf("processed_total:  %d\n", st.ProcessedTotal)
	fmt.Printf("success:          %d\n", st.Success)
	fmt.Printf("skipped:          %d\n", st.Skipped)
	fmt.Printf("failed:           %d\n", st.Failed)
	fmt.Printf("hit_max_downloads: %v\n", st.HitMaxDownloads)
	fmt.Printf("rate_limited:     %v\n", st.RateLimited)
	if st.Queue != nil {
		fmt.Printf("queue:            pending=%d running=%d done=%d failed=%d permanent_failed=%d\n",
			st.Queue.Pending, st.Queue.Running, st.Queue.Done, st.Queue.Failed, st.Queue.PermanentFailed)
	}
	if st.CooldownReason != "" {
		fmt.Printf("cooldown_reason:  %s (%ds)\n", st.CooldownReason, st.CooldownSeconds)
	}
	if st.NextRunAt != nil {
		fmt.Printf("next_run_at:      %s\n", st.NextRunAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	if st.LastError != nil {
		fmt.Printf("last_error:       [%s] %s: %s\n", st.LastError.Time.Format("2006-01-02T15:04:05Z07:00"), st.LastError.Action, st.LastError.Message)
	}
	fmt.Printf("updated_at:       %s\n", st.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
