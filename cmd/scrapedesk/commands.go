package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrapedesk/scrapedesk/internal/config"
)

// resolveProjectID picks the explicit --project value when given,
// otherwise the daemon's active project.
func resolveProjectID(ctx context.Context, client *apiClient, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	resp, err := client.get(ctx, "/workspace/active")
	if err != nil {
		return "", err
	}
	var active struct {
		ActiveID string `json:"active_id"`
	}
	if err := decodeJSON(resp, &active); err != nil {
		return "", err
	}
	if active.ActiveID == "" {
		return "", fmt.Errorf("no active project; pass --project or run \"scrapedesk project select\"")
	}
	return active.ActiveID, nil
}

// --- project ---

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage scraping projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project (becomes active)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/projects", map[string]string{"name": name})
		if err != nil {
			return err
		}

		var p struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printSuccess("Created project %s (%s)", p.Name, p.ID)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/projects")
		if err != nil {
			return err
		}

		var payload struct {
			Projects []struct {
				ID        string `json:"id"`
				Name      string `json:"name"`
				URLs      []any  `json:"urls"`
				History   []any  `json:"history"`
				RagStatus string `json:"rag_status"`
			} `json:"projects"`
			ActiveID string `json:"active_id"`
		}
		if err := decodeJSON(resp, &payload); err != nil {
			return err
		}

		if len(payload.Projects) == 0 {
			fmt.Println("No projects yet. Create one with \"scrapedesk project create <name>\".")
			return nil
		}
		for _, p := range payload.Projects {
			marker := " "
			if p.ID == payload.ActiveID {
				marker = colorize(colorBold, "*")
			}
			fmt.Printf("%s %s  %s  (%d URLs, %d runs, rag: %s)\n",
				marker, p.ID, p.Name, len(p.URLs), len(p.History), p.RagStatus)
		}
		return nil
	},
}

var projectSelectCmd = &cobra.Command{
	Use:   "select <project-id>",
	Short: "Make a project active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/workspace/active", map[string]string{"id": args[0]})
		if err != nil {
			return err
		}
		var active struct {
			ActiveID string `json:"active_id"`
		}
		if err := decodeJSON(resp, &active); err != nil {
			return err
		}
		if active.ActiveID != args[0] {
			printWarning("project %s not found; active project unchanged", args[0])
			return nil
		}
		printSuccess("Active project: %s", active.ActiveID)
		return nil
	},
}

var projectRenameCmd = &cobra.Command{
	Use:   "rename <project-id> <new-name>",
	Short: "Rename a project",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args[1:], " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.patch(cmd.Context(), "/projects/"+args[0], map[string]string{"name": name})
		if err != nil {
			return err
		}
		var p struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printSuccess("Renamed project to %s", p.Name)
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project and all its data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This deletes the project's queue, results, history, and chat. Re-run with --confirm.")
			return fmt.Errorf("missing --confirm")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/projects/"+args[0]+"?confirm=true")
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}
		printSuccess("Deleted project %s", args[0])
		return nil
	},
}

func init() {
	projectDeleteCmd.Flags().Bool("confirm", false, "confirm deletion")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectSelectCmd)
	projectCmd.AddCommand(projectRenameCmd)
	projectCmd.AddCommand(projectDeleteCmd)
}

// --- url ---

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Manage a project's URL queue",
}

var urlAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a URL with scraping conditions to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conditions, _ := cmd.Flags().GetString("conditions")
		projectFlag, _ := cmd.Flags().GetString("project")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		projectID, err := resolveProjectID(cmd.Context(), client, projectFlag)
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects/"+projectID+"/urls", map[string]string{
			"url":        args[0],
			"conditions": conditions,
		})
		if err != nil {
			return err
		}
		var entry struct {
			ID  int    `json:"id"`
			URL string `json:"url"`
		}
		if err := decodeJSON(resp, &entry); err != nil {
			return err
		}
		printSuccess("Added URL %d: %s", entry.ID, entry.URL)
		return nil
	},
}

var urlClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every URL (and current results) from the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectFlag, _ := cmd.Flags().GetString("project")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		projectID, err := resolveProjectID(cmd.Context(), client, projectFlag)
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/projects/"+projectID+"/urls")
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}
		printSuccess("Cleared URL queue")
		return nil
	},
}

func init() {
	urlAddCmd.Flags().String("conditions", "", "what to extract from the page (required)")
	urlAddCmd.Flags().String("project", "", "project ID (default: active project)")
	urlAddCmd.MarkFlagRequired("conditions")
	urlClearCmd.Flags().String("project", "", "project ID (default: active project)")

	urlCmd.AddCommand(urlAddCmd)
	urlCmd.AddCommand(urlClearCmd)
}

// --- scrape ---

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run the scrape for every URL in the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectFlag, _ := cmd.Flags().GetString("project")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		projectID, err := resolveProjectID(cmd.Context(), client, projectFlag)
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects/"+projectID+"/scrape", nil)
		if err != nil {
			return err
		}
		var summary struct {
			History struct {
				URL          string `json:"url"`
				ItemsScraped int    `json:"items_scraped"`
				DataSize     string `json:"data_size"`
			} `json:"history"`
			RagPromptDue bool `json:"rag_prompt_due"`
		}
		if err := decodeJSON(resp, &summary); err != nil {
			return err
		}

		printSuccess("Scrape completed: %s (%d items, %s)",
			summary.History.URL, summary.History.ItemsScraped, summary.History.DataSize)
		if summary.RagPromptDue {
			printWarning("Allow chat to use this project's scraped content? Run \"scrapedesk rag enable\" (or disable/later).")
		}
		return nil
	},
}

func init() {
	scrapeCmd.Flags().String("project", "", "project ID (default: active project)")
}

// --- results ---

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show or export scraped results",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the current result set",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectFlag, _ := cmd.Flags().GetString("project")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		projectID, err := resolveProjectID(cmd.Context(), client, projectFlag)
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/projects/"+projectID+"/results")
		if err != nil {
			return err
		}
		var payload struct {
			Results []struct {
				URL    string `json:"url"`
				Fields []struct {
					Title string `json:"title"`
					Value string `json:"value"`
				} `json:"fields"`
			} `json:"results"`
			IsScrapingError bool   `json:"is_scraping_error"`
			ErrorMessage    string `json:"error_message"`
		}
		if err := decodeJSON(resp, &payload); err != nil {
			return err
		}

		if payload.IsScrapingError {
			printError("%s", payload.ErrorMessage)
			return nil
		}
		if len(payload.Results) == 0 {
			fmt.Println("No results yet. Run \"scrapedesk scrape\" first.")
			return nil
		}
		for i, r := range payload.Results {
			fmt.Printf("\n%s %s\n", colorize(colorBold, fmt.Sprintf("[%d]", i+1)), r.URL)
			for _, f := range r.Fields {
				fmt.Printf("  %s: %s\n", f.Title, f.Value)
			}
		}
		return nil
	},
}

var resultsExportCmd = &cobra.Command{
	Use:   "export <n>",
	Short: "Download result number n as a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectFlag, _ := cmd.Flags().GetString("project")
		format, _ := cmd.Flags().GetString("format")
		outDir, _ := cmd.Flags().GetString("out")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		projectID, err := resolveProjectID(cmd.Context(), client, projectFlag)
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/projects/%s/results/%s/export", projectID, args[0])
		if format != "" {
			path += "?format=" + url.QueryEscape(format)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return apiRespError(resp)
		}

		name := filenameFromDisposition(resp.Header.Get("Content-Disposition"))
		if name == "" {
			name = "scraping_result_" + args[0]
		}
		if outDir != "" {
			name = filepath.Join(outDir, name)
		}

		f, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
		defer f.Close()
		if _, err := f.ReadFrom(resp.Body); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}

		printSuccess("Saved %s", name)
		return nil
	},
}

// filenameFromDisposition extracts the quoted filename from a
// Content-Disposition attachment header.
func filenameFromDisposition(header string) string {
	const marker = `filename="`
	i := strings.Index(header, marker)
	if i < 0 {
		return ""
	}
	rest := header[i+len(marker):]
	j := strings.Index(rest, `"`)
	if j < 0 {
		return ""
	}
	return rest[:j]
}

func init() {
	resultsListCmd.Flags().String("project", "", "project ID (default: active project)")
	resultsExportCmd.Flags().String("project", "", "project ID (default: active project)")
	resultsExportCmd.Flags().String("format", "", "export format: json or csv (default: settings)")
	resultsExportCmd.Flags().String("out", "", "directory to write the file into")

	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsExportCmd)
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect a project's scrape history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scrape runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectFlag, _ := cmd.Flags().GetString("project")
		page, _ := cmd.Flags().GetInt("page")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		projectID, err := resolveProjectID(cmd.Context(), client, projectFlag)
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/projects/%s/history?page=%d", projectID, page))
		if err != nil {
			return err
		}
		var payload struct {
			Items []struct {
				ID           int    `json:"id"`
				Timestamp    string `json:"timestamp"`
				URL          string `json:"url"`
				DataSize     string `json:"data_size"`
				ItemsScraped int    `json:"items_scraped"`
				Status       string `json:"status"`
			} `json:"items"`
			Page struct {
				Current    int `json:"current"`
				TotalPages int `json:"total_pages"`
				TotalItems int `json:"total_items"`
			} `json:"page"`
		}
		if err := decodeJSON(resp, &payload); err != nil {
			return err
		}

		if payload.Page.TotalItems == 0 {
			fmt.Println("No scrape runs yet.")
			return nil
		}
		for _, item := range payload.Items {
			fmt.Printf("#%d  %s  %s  %s  (%d items, %s)\n",
				item.ID, item.Timestamp, item.Status, item.URL, item.ItemsScraped, item.DataSize)
		}
		fmt.Printf("\npage %d of %d (%d runs)\n", payload.Page.Current, payload.Page.TotalPages, payload.Page.TotalItems)
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <history-id>",
	Short: "Delete one history entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectFlag, _ := cmd.Flags().GetString("project")
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This removes the history entry permanently. Re-run with --confirm.")
			return fmt.Errorf("missing --confirm")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		projectID, err := resolveProjectID(cmd.Context(), client, projectFlag)
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(),
			fmt.Sprintf("/projects/%s/history/%s?confirm=true", projectID, args[0]))
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}
		printSuccess("Deleted history entry %s", args[0])
		return nil
	},
}

func init() {
	historyListCmd.Flags().String("project", "", "project ID (default: active project)")
	historyListCmd.Flags().Int("page", 1, "page number")
	historyDeleteCmd.Flags().String("project", "", "project ID (default: active project)")
	historyDeleteCmd.Flags().Bool("confirm", false, "confirm deletion")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}

// --- rag ---

var ragCmd = &cobra.Command{
	Use:   "rag",
	Short: "Control whether chat may use scraped content",
}

func newRagDecisionCmd(decision, short string) *cobra.Command {
	c := &cobra.Command{
		Use:   decision,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectFlag, _ := cmd.Flags().GetString("project")

			client, err := newAPIClient()
			if err != nil {
				return err
			}
			projectID, err := resolveProjectID(cmd.Context(), client, projectFlag)
			if err != nil {
				return err
			}

			resp, err := client.post(cmd.Context(), "/projects/"+projectID+"/rag",
				map[string]string{"decision": decision})
			if err != nil {
				return err
			}
			var result struct {
				RagStatus string `json:"rag_status"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			printSuccess("RAG status: %s", result.RagStatus)
			return nil
		},
	}
	c.Flags().String("project", "", "project ID (default: active project)")
	return c
}

func init() {
	ragCmd.AddCommand(newRagDecisionCmd("enable", "Allow chat to use this project's scraped content"))
	ragCmd.AddCommand(newRagDecisionCmd("disable", "Keep scraped content out of chat"))
	ragCmd.AddCommand(newRagDecisionCmd("later", "Decide later; ask again after the next scrape"))
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a chat message about the project",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")
		projectFlag, _ := cmd.Flags().GetString("project")
		model, _ := cmd.Flags().GetString("model")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		projectID, err := resolveProjectID(cmd.Context(), client, projectFlag)
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/chat", map[string]string{
			"project_id": projectID,
			"message":    message,
			"model":      model,
		})
		if err != nil {
			return err
		}
		var result struct {
			Reply struct {
				Text string `json:"text"`
			} `json:"reply"`
			RagUsed bool `json:"rag_used"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Reply.Text)
		if result.RagUsed {
			printStatus("RAG", "used scraped content")
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().String("project", "", "project ID (default: active project)")
	chatCmd.Flags().String("model", "", "model ID (default: server default)")
}

// --- settings ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or update user settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/settings")
		if err != nil {
			return err
		}

		var s any
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a settings key (openaiApiKey, geminiApiKey, defaultExportFormat)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		// Read-modify-write keeps the other keys intact.
		resp, err := client.get(cmd.Context(), "/settings")
		if err != nil {
			return err
		}
		var current map[string]any
		if err := decodeJSON(resp, &current); err != nil {
			return err
		}
		if _, ok := current[key]; !ok {
			return fmt.Errorf("unknown settings key %q", key)
		}
		current[key] = value

		putResp, err := client.put(cmd.Context(), "/settings", current)
		if err != nil {
			return err
		}
		if err := checkStatus(putResp); err != nil {
			return err
		}
		printSuccess("Set %s", key)
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update daemon configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, info := range config.ShowAll(cfg) {
			fmt.Printf("%-24s %-36s %s\n", info.Key, info.Value, info.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			return fmt.Errorf("%w\nvalid keys: %s", err, strings.Join(config.ValidKeys(), ", "))
		}
		printSuccess("Set %s = %s (restart the daemon to apply)", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
