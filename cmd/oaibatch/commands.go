package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalenz/oaibatch/internal/batch"
	"github.com/kalenz/oaibatch/internal/config"
	"github.com/kalenz/oaibatch/internal/openai"
	"github.com/kalenz/oaibatch/internal/prompt"
	"github.com/kalenz/oaibatch/internal/request"
	"github.com/kalenz/oaibatch/internal/store"
)

// newManager wires a manager from the loaded config and the resolved
// API key. The key is resolved fresh on every invocation.
var newManager = func() (*batch.Manager, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, err
	}

	st := store.Open(cfg.DataDir)
	key := st.APIKey()
	if key == "" {
		return nil, cfg, fmt.Errorf("no API key configured: set %s or run 'oaibatch config set-key'", store.EnvAPIKey)
	}

	client := openai.NewClientWithBaseURL(key, cfg.BaseURL)
	return batch.NewManager(client, st), cfg, nil
}

// --- create ---

var createCmd = &cobra.Command{
	Use:   "create [prompt]",
	Short: "Submit a prompt as a batch job",
	Long: `Submit a prompt as a batch job.

The prompt comes from the positional argument, --file, --url, or stdin.

Examples:
  oaibatch create "Explain the raft consensus protocol"
  oaibatch create --file ./paper.pdf --effort high
  oaibatch create --url https://example.com/article -s "Summarize this page"
  cat notes.txt | oaibatch create`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		url, _ := cmd.Flags().GetString("url")

		var promptText string
		var err error
		switch {
		case file != "":
			promptText, err = prompt.FromFile(file)
		case url != "":
			promptText, err = prompt.FromURL(cmd.Context(), &http.Client{Timeout: 30 * time.Second}, url)
		case len(args) > 0:
			promptText = strings.Join(args, " ")
		default:
			if stdinIsTerminal() {
				return fmt.Errorf("no prompt given: pass it as an argument, --file, --url, or pipe it on stdin")
			}
			promptText, err = prompt.FromReader(os.Stdin)
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(promptText) == "" {
			return fmt.Errorf("prompt is empty")
		}

		mgr, cfg, err := newManager()
		if err != nil {
			return err
		}

		instructions, _ := cmd.Flags().GetString("system")
		model, _ := cmd.Flags().GetString("model")
		maxTokens, _ := cmd.Flags().GetInt("max-tokens")
		effort, _ := cmd.Flags().GetString("effort")
		webSearch, _ := cmd.Flags().GetBool("web-search")
		searchContext, _ := cmd.Flags().GetString("search-context")

		if model == "" {
			model = cfg.Model
		}
		if maxTokens == 0 {
			maxTokens = cfg.MaxOutputTokens
		}
		if !cmd.Flags().Changed("effort") {
			effort = cfg.ReasoningEffort
		}
		if !cmd.Flags().Changed("web-search") {
			webSearch = cfg.WebSearch.Enabled
		}
		if searchContext == "" {
			searchContext = cfg.WebSearch.ContextSize
		}

		rec, err := mgr.Create(cmd.Context(), batch.CreateParams{
			Prompt:               promptText,
			Instructions:         instructions,
			Model:                model,
			MaxOutputTokens:      maxTokens,
			ReasoningEffort:      effort,
			WebSearch:            webSearch,
			WebSearchContextSize: searchContext,
		})
		if err != nil {
			return err
		}

		printSuccess("Submitted batch %s", rec.ID)
		printStatus("Remote job", "%s", rec.RemoteJobID)
		printStatus("Model", "%s", rec.Model)
		if rec.ReasoningEffort != nil {
			printStatus("Effort", "%s", *rec.ReasoningEffort)
		}
		printStatus("Status", "%s", colorize(statusColor(rec.Status), rec.Status))
		return nil
	},
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func init() {
	createCmd.Flags().StringP("system", "s", "", "system instructions for the model")
	createCmd.Flags().String("model", "", "model to use (default from config)")
	createCmd.Flags().IntP("max-tokens", "m", 0, "maximum output tokens (default from config)")
	createCmd.Flags().String("effort", "", "reasoning effort: none, low, medium, high, xhigh")
	createCmd.Flags().Bool("web-search", false, "enable the web search tool")
	createCmd.Flags().String("search-context", "", "web search context size: low, medium, high")
	createCmd.Flags().StringP("file", "f", "", "read the prompt from a file (PDF supported)")
	createCmd.Flags().StringP("url", "u", "", "fetch the prompt from a URL")
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List batch jobs and refresh their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := newManager()
		if err != nil {
			return err
		}

		if err := mgr.RefreshAll(cmd.Context()); err != nil {
			printWarning("could not refresh remote status: %v", err)
		}

		records := mgr.Store().List()
		if len(records) == 0 {
			fmt.Println("No batch jobs found.")
			return nil
		}

		for _, r := range records {
			promptText := strings.ReplaceAll(r.Prompt, "\n", " ")
			if len(promptText) > 60 {
				promptText = promptText[:60] + "..."
			}
			cost := ""
			if r.Usage != nil {
				if _, _, total, ok := request.EstimateCost(r.Model, r.Usage.InputTokens, r.Usage.OutputTokens); ok {
					cost = fmt.Sprintf("  $%.4f", total)
				}
			}
			fmt.Printf("%s  %-11s  %s  %-12s  %s%s\n",
				colorize(colorCyan, r.ID),
				colorize(statusColor(r.Status), r.Status),
				r.CreatedAt.Format("2006-01-02 15:04"),
				r.Model,
				promptText,
				cost,
			)
		}
		return nil
	},
}

// --- read ---

var readCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Fetch and print the result of a batch job",
	Long: `Fetch and print the result of a batch job.

The id is either the local request id (req-...) or the remote batch id.
Results are cached locally; reading a job twice downloads nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		responseOnly, _ := cmd.Flags().GetBool("response-only")

		mgr, _, err := newManager()
		if err != nil {
			return err
		}

		rec, err := mgr.Fetch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if rec.CachedResponseText == nil {
			return fmt.Errorf("no response available for %s", rec.ID)
		}

		if responseOnly {
			fmt.Println(*rec.CachedResponseText)
			return nil
		}

		printStatus("Request", "%s", rec.ID)
		printStatus("Remote job", "%s", rec.RemoteJobID)
		printStatus("Model", "%s", rec.Model)
		printStatus("Created", "%s", rec.CreatedAt.Format("2006-01-02 15:04:05"))
		if rec.CompletedAt != nil {
			printStatus("Completed", "%s", time.Unix(*rec.CompletedAt, 0).Format("2006-01-02 15:04:05"))
		}
		if rec.Usage != nil {
			printStatus("Tokens", "%d in / %d out / %d total",
				rec.Usage.InputTokens, rec.Usage.OutputTokens, rec.Usage.TotalTokens)
			if in, out, total, ok := request.EstimateCost(rec.Model, rec.Usage.InputTokens, rec.Usage.OutputTokens); ok {
				printStatus("Cost", "$%.4f (input $%.4f, output $%.4f)", total, in, out)
			}
		}
		fmt.Fprintln(os.Stderr)
		fmt.Println(*rec.CachedResponseText)
		return nil
	},
}

func init() {
	readCmd.Flags().BoolP("response-only", "r", false, "print only the response text")
}

// --- delete ---

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a batch job from the local store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := newManager()
		if err != nil {
			return err
		}

		if err := mgr.Delete(args[0]); err != nil {
			return err
		}
		printSuccess("Deleted %s", args[0])
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, kv := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, kv.Key), kv.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key [api-key]",
	Short: "Store the OpenAI API key",
	Long: `Store the OpenAI API key in the local credentials file.

The key is read from the argument, or from stdin when omitted. The
environment variable ` + store.EnvAPIKey + ` always takes precedence
over the stored key and is never written to disk.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			fmt.Fprint(os.Stderr, "API key: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading key: %w", err)
			}
			key = strings.TrimSpace(line)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := store.Open(cfg.DataDir).SaveCredential(key); err != nil {
			return err
		}
		printSuccess("API key saved")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetKeyCmd)
}
