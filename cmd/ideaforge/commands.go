package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/ideaforge/ideaforge/internal/backend"
	"github.com/ideaforge/ideaforge/internal/config"
	"github.com/ideaforge/ideaforge/internal/history"
	"github.com/ideaforge/ideaforge/internal/notify"
	"github.com/ideaforge/ideaforge/internal/pipeline"
	"github.com/ideaforge/ideaforge/internal/settings"
	"github.com/ideaforge/ideaforge/tui"
	"github.com/spf13/cobra"
)

var (
	runIdea    string
	runTech    string
	runPrivate bool
	runPublic  bool

	historyLimit int

	setGithubToken string
	setGithubUser  string
	setGeminiKey   string
	setTech        string
	setPrivate     bool
)

func init() {
	// run command
	runCmd := &cobra.Command{
		Use:   "run [IDEA]",
		Short: "Run the build pipeline for an app idea",
		Long: `Starts a pipeline run and opens the dashboard. The idea can be given
as an argument, via --idea, or piped on stdin. The run pauses for feature
review before the repository is created.`,
		RunE: runRun,
	}
	runCmd.Flags().StringVar(&runIdea, "idea", "", "app idea text")
	runCmd.Flags().StringVar(&runTech, "tech", "", "tech preferences, overrides settings")
	runCmd.Flags().BoolVar(&runPrivate, "private", false, "create a private repository")
	runCmd.Flags().BoolVar(&runPublic, "public", false, "create a public repository even if settings default to private")
	rootCmd.AddCommand(runCmd)

	// history command
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs",
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)

	// settings command
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show stored credentials and preferences",
		RunE:  runSettings,
	}
	settingsSetCmd := &cobra.Command{
		Use:   "set",
		Short: "Update stored credentials and preferences",
		RunE:  runSettingsSet,
	}
	settingsSetCmd.Flags().StringVar(&setGithubToken, "github-token", "", "GitHub personal access token")
	settingsSetCmd.Flags().StringVar(&setGithubUser, "github-user", "", "GitHub username")
	settingsSetCmd.Flags().StringVar(&setGeminiKey, "gemini-key", "", "Gemini API key")
	settingsSetCmd.Flags().StringVar(&setTech, "tech", "", "default tech preferences")
	settingsSetCmd.Flags().BoolVar(&setPrivate, "private", false, "create private repositories by default")
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)

	// status command
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Check backend and credential health",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func newBackend(cfg *config.Config) *backend.Client {
	return backend.New(cfg.Backend.URL, backend.WithStartTimeout(cfg.StartTimeout()))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The watcher keeps credentials fresh for the whole dashboard session:
	// a token pasted into settings while the run sits at the review gate is
	// picked up on resume.
	watcher, err := settings.NewWatcher(cfg.Storage.SettingsPath)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()
	sets := watcher.Current()

	idea := runIdea
	if idea == "" && len(args) > 0 {
		idea = strings.Join(args, " ")
	}
	if idea == "" {
		// Piped input is the last resort.
		if fi, _ := os.Stdin.Stat(); fi != nil && fi.Mode()&os.ModeCharDevice == 0 {
			data, err := io.ReadAll(os.Stdin)
			if err == nil {
				idea = strings.TrimSpace(string(data))
			}
		}
	}

	tech := sets.TechPreferences
	if runTech != "" {
		tech = runTech
	}
	private := sets.DefaultPrivate
	if runPrivate {
		private = true
	}
	if runPublic {
		private = false
	}

	input := pipeline.RunInput{
		IdeaText:        idea,
		TechPreferences: tech,
		Private:         private,
		GithubToken:     sets.GithubToken,
		GithubUser:      sets.GithubUser,
		GeminiKey:       sets.GeminiKey,
	}
	if err := input.Validate(); err != nil {
		return err
	}

	client := newBackend(cfg)
	if err := preflightToken(context.Background(), client, input.GithubToken); err != nil {
		return err
	}

	store, err := history.New(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctrl := pipeline.New(pipeline.Deps{
		Backend: client,
		OpenStream: func(ctx context.Context, runID string) (pipeline.EventSource, error) {
			return client.OpenStream(ctx, runID)
		},
		History:  store,
		Notifier: buildNotifier(cfg),
		Credentials: func() (string, string, string) {
			s := watcher.Current()
			return s.GithubToken, s.GithubUser, s.GeminiKey
		},
		StepDelay: cfg.StepDelay(),
	})

	if err := ctrl.Start(input); err != nil {
		return err
	}

	model := tui.NewModel(tui.ModelConfig{Controller: ctrl, History: store})
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}

	// Surface the outcome on the plain terminal after the dashboard closes.
	snap := ctrl.Snapshot()
	switch snap.State {
	case pipeline.StateSuccess:
		fmt.Printf("Completed: %s", snap.Record.ProjectTitle)
		if snap.Record.RepoURL != "" {
			fmt.Printf(" -> %s", snap.Record.RepoURL)
		}
		fmt.Println()
	case pipeline.StateFailed:
		return fmt.Errorf("pipeline failed: %s", snap.Record.Error)
	case pipeline.StateConnectionLost:
		fmt.Printf("Connection lost; run %s may still be executing on the backend\n", snap.Record.ID)
	}
	return nil
}

// preflightToken verifies a configured GitHub token with the backend before
// the run starts, so an invalid token fails fast instead of degrading the
// repository steps mid-run. An unreachable backend skips the check: the run
// then falls back to local simulation anyway.
func preflightToken(ctx context.Context, client *backend.Client, token string) error {
	if token == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := client.Health(ctx); err != nil {
		return nil
	}
	user, err := client.ValidateToken(ctx, token)
	if err != nil {
		return fmt.Errorf("github token rejected: %w", err)
	}
	fmt.Printf("GitHub token valid for %s\n", user)
	return nil
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.Notifications.Desktop {
		notifiers = append(notifiers, notify.NewDesktop(true))
	}
	if cfg.Notifications.SlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlack(cfg.Notifications.SlackWebhook))
	}
	if len(notifiers) == 0 {
		return notify.Noop{}
	}
	return notify.NewMulti(notifiers...)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := history.New(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.Recent(historyLimit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No runs yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tSTATUS\tPROJECT\tFEATURES\tELAPSED\tREPO")
	for _, rec := range recs {
		title := rec.ProjectTitle
		if title == "" {
			title = rec.ID
		}
		status := string(rec.Status)
		if rec.Degraded && rec.Status == pipeline.RunSuccess {
			status += " (simulated)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.0fs\t%s\n",
			humanize.Time(rec.CreatedAt), status, title, rec.FeaturesCount, rec.ElapsedSeconds, rec.RepoURL)
	}
	w.Flush()

	agg, err := store.Summary()
	if err != nil {
		return err
	}
	fmt.Printf("\n%d runs, %d successful, avg %.0fs, %d features built\n",
		agg.Total, agg.Successful, agg.AvgElapsedSeconds, agg.TotalFeatures)
	return nil
}

func runSettings(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sets, err := settings.Load(cfg.Storage.SettingsPath)
	if err != nil {
		return err
	}

	fmt.Printf("Settings file: %s\n\n", cfg.Storage.SettingsPath)
	fmt.Printf("GitHub user:       %s\n", valueOrUnset(sets.GithubUser))
	fmt.Printf("GitHub token:      %s\n", maskSecret(sets.GithubToken))
	fmt.Printf("Gemini key:        %s\n", maskSecret(sets.GeminiKey))
	fmt.Printf("Default private:   %v\n", sets.DefaultPrivate)
	fmt.Printf("Tech preferences:  %s\n", valueOrUnset(sets.TechPreferences))
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sets, err := settings.Load(cfg.Storage.SettingsPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("github-token") {
		sets.GithubToken = setGithubToken
	}
	if cmd.Flags().Changed("github-user") {
		sets.GithubUser = setGithubUser
	}
	if cmd.Flags().Changed("gemini-key") {
		sets.GeminiKey = setGeminiKey
	}
	if cmd.Flags().Changed("tech") {
		sets.TechPreferences = setTech
	}
	if cmd.Flags().Changed("private") {
		sets.DefaultPrivate = setPrivate
	}

	if err := settings.Save(cfg.Storage.SettingsPath, sets); err != nil {
		return err
	}
	fmt.Println("Settings saved")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sets, err := settings.Load(cfg.Storage.SettingsPath)
	if err != nil {
		return err
	}

	client := newBackend(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		fmt.Printf("Backend:      unreachable (%v)\n", err)
		fmt.Println("              runs will use local fallback simulation")
	} else {
		fmt.Printf("Backend:      %s at %s\n", health.Status, cfg.Backend.URL)
		if health.GeminiAvailable {
			fmt.Println("AI:           available")
		} else {
			fmt.Println("AI:           unavailable, fallback content will be used")
		}
	}

	if sets.GithubToken == "" {
		fmt.Println("GitHub token: not set, repository creation will be simulated")
		return nil
	}
	user, err := client.ValidateToken(ctx, sets.GithubToken)
	if err != nil {
		fmt.Printf("GitHub token: invalid (%v)\n", err)
	} else {
		fmt.Printf("GitHub token: valid for %s\n", user)
	}
	return nil
}

func valueOrUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
