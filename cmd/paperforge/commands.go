package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the extraction pipeline on a paper or raw text",
	Long: `Run the extraction pipeline on a paper or raw text.

Examples:
  paperforge ingest --file ./attention.pdf
  paperforge ingest --text "Transformers use self-attention to model long-range dependencies"
  paperforge ingest --file ./paper.pdf --user alice --no-wait`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		user, _ := cmd.Flags().GetString("user")
		noWait, _ := cmd.Flags().GetBool("no-wait")

		if text == "" && file == "" {
			return fmt.Errorf("one of --text or --file is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		client.user = user

		ctx := cmd.Context()
		var result map[string]any

		switch {
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			resp, err := client.postFile(ctx, "/papers", filepath.Base(file), data)
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
		default:
			resp, err := client.post(ctx, "/agents/run", map[string]any{
				"task":  "extract",
				"input": text,
			})
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
		}

		sessionID, _ := result["session_id"].(string)
		if sessionID == "" {
			return fmt.Errorf("server did not return a session id: %v", result)
		}

		if noWait {
			printSuccess("Started session %s", sessionID)
			return nil
		}
		return followSession(ctx, client, sessionID)
	},
}

func init() {
	ingestCmd.Flags().String("text", "", "raw text to extract from")
	ingestCmd.Flags().String("file", "", "paper to upload (PDF or plain text)")
	ingestCmd.Flags().String("user", "", "user scope for the graph")
	ingestCmd.Flags().Bool("no-wait", false, "start the pipeline without following its progress")
}

// followSession polls the activity feed and prints each stage until the
// pipeline reports the terminal orchestrator activity.
func followSession(ctx context.Context, client *apiClient, sessionID string) error {
	cursor := 0
	for {
		path := fmt.Sprintf("/agents/%s/activities?cursor=%d", sessionID, cursor)
		resp, err := client.get(ctx, path)
		if err != nil {
			return err
		}

		var page struct {
			Activities []struct {
				AgentName string `json:"agent_name"`
				Action    string `json:"action"`
				Status    string `json:"status"`
				Message   string `json:"message"`
			} `json:"activities"`
			Cursor int            `json:"cursor"`
			Done   bool           `json:"done"`
			Result map[string]any `json:"result"`
		}
		if err := decodeJSON(resp, &page); err != nil {
			return err
		}

		for _, a := range page.Activities {
			printStage("[%s] %s", a.AgentName, a.Message)
		}
		cursor = page.Cursor

		if page.Done {
			return printRunResult(page.Result)
		}
	}
}

func printRunResult(result map[string]any) error {
	status, _ := result["status"].(string)
	switch status {
	case "completed", "parse_error":
		concepts, _ := result["concepts"].([]any)
		relations, _ := result["relations"].([]any)
		printSuccess("Extracted %d concepts, %d relations", len(concepts), len(relations))
		if status == "parse_error" {
			printWarning("Model output was not valid JSON, graph unchanged")
		}
		if explanation, ok := result["explanation"].(string); ok && explanation != "" {
			fmt.Printf("\n%s\n", explanation)
		}
		return nil
	case "rate_limited":
		printError("Extraction rate limited, try again later")
	default:
		printError("Pipeline failed: %v", result["message"])
	}
	return fmt.Errorf("pipeline finished with status %q", status)
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search concepts in the knowledge graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")
		semantic, _ := cmd.Flags().GetBool("semantic")
		user, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		client.user = user
		ctx := cmd.Context()

		if semantic {
			resp, err := client.post(ctx, "/graph/semantic-search", map[string]any{
				"query": query,
				"top_k": limit,
			})
			if err != nil {
				return err
			}
			var page struct {
				Results []struct {
					Concept struct {
						Name       string `json:"name"`
						Definition string `json:"definition"`
					} `json:"concept"`
					Similarity float64 `json:"similarity"`
				} `json:"results"`
			}
			if err := decodeJSON(resp, &page); err != nil {
				return err
			}
			if len(page.Results) == 0 {
				fmt.Println("No results found.")
				return nil
			}
			for _, r := range page.Results {
				fmt.Printf("%s [%.3f]\n  %s\n", paint(ansiBold, r.Concept.Name), r.Similarity, r.Concept.Definition)
			}
			return nil
		}

		path := fmt.Sprintf("/graph/concepts?query=%s&limit=%d", url.QueryEscape(query), limit)
		resp, err := client.get(ctx, path)
		if err != nil {
			return err
		}
		var concepts []struct {
			Name        string `json:"name"`
			ConceptType string `json:"concept_type"`
			Definition  string `json:"definition"`
		}
		if err := decodeJSON(resp, &concepts); err != nil {
			return err
		}
		if len(concepts) == 0 {
			fmt.Println("No results found.")
			return nil
		}
		for _, c := range concepts {
			fmt.Printf("%s (%s)\n  %s\n", paint(ansiBold, c.Name), c.ConceptType, c.Definition)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 5, "maximum number of results")
	searchCmd.Flags().Bool("semantic", false, "rank by embedding similarity instead of keyword match")
	searchCmd.Flags().String("user", "", "user scope for the graph")
}

// --- papers ---

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "Manage ingested papers",
}

var papersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List ingested papers",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		client.user = user

		resp, err := client.get(cmd.Context(), "/papers")
		if err != nil {
			return err
		}
		var papers []struct {
			ID       string `json:"id"`
			Filename string `json:"filename"`
			Title    string `json:"title"`
			Status   string `json:"status"`
		}
		if err := decodeJSON(resp, &papers); err != nil {
			return err
		}
		if len(papers) == 0 {
			fmt.Println("No papers ingested yet.")
			return nil
		}
		for _, p := range papers {
			title := p.Title
			if title == "" {
				title = p.Filename
			}
			fmt.Printf("%s  %s (%s)\n", p.ID, paint(ansiBold, title), p.Status)
		}
		return nil
	},
}

var papersRmCmd = &cobra.Command{
	Use:   "rm <paper-id>",
	Short: "Remove a paper record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		client.user = user

		resp, err := client.delete(cmd.Context(), "/papers/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Removed paper %s", args[0])
		return nil
	},
}

func init() {
	papersCmd.PersistentFlags().String("user", "", "user scope for the graph")
	papersCmd.AddCommand(papersListCmd, papersRmCmd)
}
