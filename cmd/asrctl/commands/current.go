package commands

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
)

type currentModelResponse struct {
	Alias        string `json:"alias"`
	ModelID      string `json:"model_id"`
	EngineType   string `json:"engine_type"`
	Capabilities struct {
		Timestamp      bool `json:"timestamp"`
		Diarization    bool `json:"diarization"`
		EmotionTags    bool `json:"emotion_tags"`
		LanguageDetect bool `json:"language_detect"`
	} `json:"capabilities"`
	QueueDepth int  `json:"queue_depth"`
	QueueCap   int  `json:"queue_cap"`
	Degraded   bool `json:"degraded"`
}

func newCurrentCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "current",
		Short: "Show the currently loaded model and queue depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			var body currentModelResponse
			if err := getJSON(cmd.Context(), serverURL+"/v1/models/current", &body); err != nil {
				return fmt.Errorf("fetching current model: %w", err)
			}
			cmd.Print(currentTable(body))
			return nil
		},
	}
	return c
}

func currentTable(c currentModelResponse) string {
	var buf bytes.Buffer
	table := newTable(&buf)
	table.Header([]string{"FIELD", "VALUE"})
	table.Append([]string{"alias", c.Alias})
	table.Append([]string{"engine", c.EngineType})
	table.Append([]string{"model_id", c.ModelID})
	table.Append([]string{"capabilities", capabilitiesLabel(c.Capabilities)})
	table.Append([]string{"queue", fmt.Sprintf("%d/%d", c.QueueDepth, c.QueueCap)})
	table.Append([]string{"degraded", fmt.Sprintf("%v", c.Degraded)})
	table.Render()
	return buf.String()
}
