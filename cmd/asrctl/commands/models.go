package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

type modelSpecView struct {
	Alias        string `json:"alias"`
	ModelID      string `json:"model_id"`
	EngineType   string `json:"engine_type"`
	Description  string `json:"description"`
	Capabilities struct {
		Timestamp      bool `json:"timestamp"`
		Diarization    bool `json:"diarization"`
		EmotionTags    bool `json:"emotion_tags"`
		LanguageDetect bool `json:"language_detect"`
	} `json:"capabilities"`
}

type modelsResponse struct {
	Models  []modelSpecView `json:"models"`
	Current string          `json:"current"`
}

func newModelsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "models",
		Short: "List the registered models",
		RunE: func(cmd *cobra.Command, args []string) error {
			var body modelsResponse
			if err := getJSON(cmd.Context(), serverURL+"/v1/models", &body); err != nil {
				return fmt.Errorf("fetching models: %w", err)
			}
			cmd.Print(modelsTable(body.Models, body.Current))
			return nil
		},
	}
	return c
}

func modelsTable(models []modelSpecView, current string) string {
	var buf bytes.Buffer
	table := newTable(&buf)
	table.Header([]string{"ALIAS", "ENGINE", "MODEL ID", "CAPABILITIES"})
	for _, m := range models {
		alias := m.Alias
		if alias == current {
			alias += " *"
		}
		table.Append([]string{alias, m.EngineType, m.ModelID, capabilitiesLabel(m.Capabilities)})
	}
	table.Render()
	return buf.String()
}

func capabilitiesLabel(c struct {
	Timestamp      bool `json:"timestamp"`
	Diarization    bool `json:"diarization"`
	EmotionTags    bool `json:"emotion_tags"`
	LanguageDetect bool `json:"language_detect"`
}) string {
	var flags []string
	if c.Timestamp {
		flags = append(flags, "timestamp")
	}
	if c.Diarization {
		flags = append(flags, "diarization")
	}
	if c.EmotionTags {
		flags = append(flags, "emotion_tags")
	}
	if c.LanguageDetect {
		flags = append(flags, "language_detect")
	}
	if len(flags) == 0 {
		return "-"
	}
	out := flags[0]
	for _, f := range flags[1:] {
		out += "," + f
	}
	return out
}

func getJSON(ctx context.Context, url string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
