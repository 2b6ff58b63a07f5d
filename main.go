// doctrans translates the text of office documents (pptx, docx, xlsx)
// through a translation service and writes translated copies next to them.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/minios-linux/doctrans/config"
	"github.com/minios-linux/doctrans/container"
	"github.com/minios-linux/doctrans/gcp"
	"github.com/minios-linux/doctrans/i18n"
	"github.com/minios-linux/doctrans/langmeta"
	"github.com/minios-linux/doctrans/memo"
	"github.com/minios-linux/doctrans/ooxml"
	"github.com/minios-linux/doctrans/pipeline"
	"github.com/minios-linux/doctrans/settings"
	"github.com/minios-linux/doctrans/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	infoTag    = color.New(color.FgBlue).SprintFunc()
	okTag      = color.New(color.FgGreen).SprintFunc()
	warnTag    = color.New(color.Bold, color.FgYellow).SprintFunc()
	errorTag   = color.New(color.FgRed).SprintFunc()
	headingTag = color.New(color.Bold, color.FgCyan).SprintFunc()
)

func logInfo(format string, args ...any) {
	fmt.Fprintln(os.Stderr, infoTag("[INFO]"), fmt.Sprintf(format, args...))
}

func logSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, okTag("[OK]"), fmt.Sprintf(format, args...))
}

func logWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, warnTag("[WARN]"), fmt.Sprintf(format, args...))
}

func logError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorTag("[ERROR]"), fmt.Sprintf(format, args...))
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	configPath string
	noColor    bool
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "doctrans",
		Short: i18n.T("Translate office documents (pptx, docx, xlsx)"),
		Long: `doctrans translates the text of office documents through a translation
service. Each document is written as a copy with a suffix (default
"_translated"); the source is never modified.

Commands:
  translate   Translate documents and directories of documents
  inspect     Show what would be translated (no network)
  languages   List known language codes
  memo        Show or prune the translation memory
  auth        Manage provider API keys

Providers:
  libretranslate  LibreTranslate server (default http://localhost:5000)
  deepl           DeepL API (API key)
  openai          OpenAI-compatible chat endpoint (API key)
  google          Google AI Gemini API (API key)
  vertex          Gemini on Vertex AI (Application Default Credentials)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", i18n.T("Config file (default: ./.doctrans.yaml if present)"))
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, i18n.T("Disable colored output"))

	root.AddCommand(
		newTranslateCmd(),
		newInspectCmd(),
		newLanguagesCmd(),
		newMemoCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: i18n.T("Show version information"),
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("doctrans version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

// translateArgs holds the translate flags. Only flags set on the command line
// override the config file.
type translateArgs struct {
	from, to   string
	workers    int
	jobs       int
	outputDir  string
	suffix     string
	scratchDir string
	memo       string
	publish    string

	provider   string
	model      string
	baseURL    string
	apiKey     string
	proxy      string
	timeout    time.Duration
	maxRetries int
	project    string
	region     string
}

func addRunFlags(fs *pflag.FlagSet, a *translateArgs) {
	fs.StringVar(&a.from, "from", "", i18n.T("Source language code (default pl)"))
	fs.StringVar(&a.to, "to", "", i18n.T("Target language code (default en)"))
	fs.IntVarP(&a.workers, "workers", "w", 0, i18n.T("Concurrent translations per document (default 10)"))
	fs.IntVarP(&a.jobs, "jobs", "j", 0, i18n.T("Documents processed at once (default 1)"))
	fs.StringVarP(&a.outputDir, "output-dir", "o", "", i18n.T("Directory for translated documents (default: next to the input)"))
	fs.StringVar(&a.suffix, "suffix", "", i18n.T("Suffix added to output names (default _translated)"))
	fs.StringVar(&a.scratchDir, "scratch-dir", "", i18n.T("Parent directory for scratch files (default: system temp)"))
	fs.StringVar(&a.memo, "memo", "", i18n.T("Translation memory file"))
	fs.StringVar(&a.publish, "publish", "", i18n.T("Upload outputs to gs://bucket/prefix"))
}

func addProviderFlags(fs *pflag.FlagSet, a *translateArgs) {
	fs.StringVarP(&a.provider, "provider", "p", "", i18n.T("Translation provider: ")+strings.Join(config.ProviderIDs(), ", "))
	fs.StringVarP(&a.model, "model", "m", "", i18n.T("Model for LLM providers"))
	fs.StringVar(&a.baseURL, "base-url", "", i18n.T("Provider endpoint URL"))
	fs.StringVar(&a.apiKey, "api-key", "", i18n.T("Provider API key"))
	fs.StringVar(&a.proxy, "proxy", "", i18n.T("HTTP/HTTPS proxy URL"))
	fs.DurationVar(&a.timeout, "timeout", 0, i18n.T("Per-request timeout"))
	fs.IntVar(&a.maxRetries, "max-retries", 0, i18n.T("Retries on rate limits and server errors (default 3)"))
	fs.StringVar(&a.project, "project", "", i18n.T("Google Cloud project (vertex)"))
	fs.StringVar(&a.region, "region", "", i18n.T("Google Cloud region (vertex, default us-central1)"))
}

// apply copies the flags the user set over cfg.
func (a *translateArgs) apply(fs *pflag.FlagSet, cfg *config.File) {
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	setInt := func(name string, dst *int, v int) {
		if fs.Changed(name) {
			*dst = v
		}
	}

	set("from", &cfg.SourceLang, a.from)
	set("to", &cfg.TargetLang, a.to)
	setInt("workers", &cfg.Workers, a.workers)
	setInt("jobs", &cfg.Jobs, a.jobs)
	set("output-dir", &cfg.OutputDir, a.outputDir)
	set("suffix", &cfg.Suffix, a.suffix)
	set("scratch-dir", &cfg.ScratchDir, a.scratchDir)
	set("memo", &cfg.Memo, a.memo)
	set("publish", &cfg.Publish, a.publish)

	if fs.Changed("provider") && a.provider != cfg.Provider.ID {
		// Endpoint and model of the config file belong to the old provider.
		cfg.Provider = config.Provider{ID: a.provider, APIKey: os.Getenv(config.EnvAPIKey)}
	}
	set("model", &cfg.Provider.Model, a.model)
	set("base-url", &cfg.Provider.BaseURL, a.baseURL)
	set("api-key", &cfg.Provider.APIKey, a.apiKey)
	set("proxy", &cfg.Provider.Proxy, a.proxy)
	if fs.Changed("timeout") {
		cfg.Provider.Timeout = a.timeout
	}
	setInt("max-retries", &cfg.Provider.MaxRetries, a.maxRetries)
	set("project", &cfg.Provider.Project, a.project)
	set("region", &cfg.Provider.Region, a.region)
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate [files|dirs...]",
		Short: i18n.T("Translate documents"),
		Long: `Translate office documents. Directories are searched recursively for
.pptx, .docx and .xlsx files; previous outputs and Office lock files are
skipped.

Each document gets its own status line. The command exits with status 1
when any document failed; the others are still translated.

Examples:
  doctrans translate deck.pptx
  doctrans translate --from pl --to de reports/
  doctrans translate -p deepl --api-key KEY -o out/ *.docx
  doctrans translate -p vertex --project my-proj --publish gs://bucket/en docs/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, ".")
			if err != nil {
				return err
			}
			a.apply(cmd.Flags(), cfg)
			resolveCredentials(cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runTranslate(cfg, args)
		},
	}

	addRunFlags(cmd.Flags(), &a)
	addProviderFlags(cmd.Flags(), &a)

	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		defs := translate.DefaultProviders()
		var completions []string
		for _, id := range config.ProviderIDs() {
			completions = append(completions, fmt.Sprintf("%s\t%s", id, defs[id].Name))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})
	langCompletion := func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var completions []string
		for _, code := range langmeta.Codes() {
			completions = append(completions, fmt.Sprintf("%s\t%s", code, langmeta.Name(code)))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
	_ = cmd.RegisterFlagCompletionFunc("from", langCompletion)
	_ = cmd.RegisterFlagCompletionFunc("to", langCompletion)

	return cmd
}

// resolveCredentials fills the API key and endpoint from the credential
// store when neither the flags, the environment nor the config file set them.
func resolveCredentials(cfg *config.File) {
	if cfg.Provider.ID == translate.ProviderVertex {
		return
	}
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = settings.GetAPIKey(cfg.Provider.ID)
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = settings.GetBaseURL(cfg.Provider.ID)
	}
}

// needsAPIKey reports whether the provider cannot work without a key.
func needsAPIKey(id string) bool {
	switch id {
	case translate.ProviderDeepL, translate.ProviderGoogle, translate.ProviderOpenAI:
		return true
	}
	return false
}

// newClient builds the translation client for cfg. The returned closer
// releases provider resources.
func newClient(ctx context.Context, cfg *config.File) (translate.Client, func() error, error) {
	if cfg.Provider.ID == translate.ProviderVertex {
		v, err := gcp.NewVertexTranslator(ctx, cfg.Provider.Project, cfg.Provider.Region, cfg.Provider.Model)
		if err != nil {
			return nil, nil, err
		}
		return v, v.Close, nil
	}

	c, err := translate.NewHTTPClient(cfg.HTTPProvider())
	if err != nil {
		return nil, nil, err
	}
	c.OnLog = logWarning
	return c, func() error { return nil }, nil
}

func runTranslate(cfg *config.File, inputs []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := pipeline.Expand(inputs, cfg.Suffix)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf(i18n.T("no documents found (supported: %s)"), strings.Join(ooxml.Extensions(), ", "))
	}

	if needsAPIKey(cfg.Provider.ID) && cfg.Provider.APIKey == "" {
		logWarning(i18n.T("No API key for %s. Run 'doctrans auth login --provider %s' or set %s."),
			cfg.Provider.ID, cfg.Provider.ID, config.EnvAPIKey)
	}

	client, closeClient, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	service, _ := client.(*translate.HTTPClient)
	defer func() {
		if err := closeClient(); err != nil {
			logWarning("%v", err)
		}
	}()

	var tm *memo.Memo
	var cache *translate.CachingClient
	if cfg.Memo != "" {
		tm, err = memo.Load(cfg.Memo)
		if err != nil {
			return err
		}
		cache = translate.NewCachingClient(client, tm)
		client = cache
	}

	batch := &pipeline.Batch{Jobs: cfg.Jobs}
	if cfg.Publish != "" {
		pub, err := gcp.NewPublisher(ctx, cfg.Publish)
		if err != nil {
			return err
		}
		pub.OnLog = logWarning
		defer pub.Close()
		batch.Publisher = pub
	}

	progress := newProgressPrinter(cfg.Jobs == 1 && isatty.IsTerminal(os.Stderr.Fd()))
	batch.Orchestrator = pipeline.New(pipeline.Options{
		Pair:       cfg.Pair(),
		Client:     client,
		Workers:    cfg.Workers,
		OutputDir:  cfg.OutputDir,
		Suffix:     cfg.Suffix,
		ScratchDir: cfg.ScratchDir,
		OnProgress: progress.update,
		OnLog:      logInfo,
	})
	batch.OnResult = func(r pipeline.Result) {
		progress.finish(r.Input)
		if r.OK() {
			logSuccess("%s", formatResult(r))
		} else {
			logError("%s", formatResult(r))
		}
	}

	logInfo(i18n.T("Translating %d document(s) %s via %s"), len(paths), cfg.Pair(), cfg.Provider.ID)
	results := batch.Run(ctx, paths)

	if tm != nil {
		hits, misses := cache.Stats()
		logInfo(i18n.T("Translation memory: %d hit(s), %d miss(es)"), hits, misses)
		if err := tm.Save(); err != nil {
			logError(i18n.T("Saving translation memory: %v"), err)
		}
	}

	if service != nil {
		logInfo(i18n.N("%d request sent to %s", "%d requests sent to %s", int(service.Calls())), service.Calls(), cfg.Provider.ID)
	}

	ok, failed := summarize(results)
	if ctx.Err() != nil {
		logWarning("%s", i18n.T("Interrupted"))
	}
	if failed > 0 {
		return fmt.Errorf(i18n.N("%d of %d document failed", "%d of %d documents failed", failed), failed, len(results))
	}
	logSuccess(i18n.N("%d document translated", "%d documents translated", ok), ok)
	return nil
}

// formatResult renders the status line of one document.
func formatResult(r pipeline.Result) string {
	if r.OK() {
		line := fmt.Sprintf("%s -> %s", r.Input, r.Output)
		if r.Published != "" {
			line += " (" + r.Published + ")"
		}
		return line
	}
	return fmt.Sprintf("%s: %s: %v", r.Input, r.Kind, r.Err)
}

func summarize(results []pipeline.Result) (ok, failed int) {
	for _, r := range results {
		if r.OK() {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

// progressBar renders a colored bar followed by the percentage.
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100

	c := color.New(color.FgGreen)
	switch {
	case percent < 34:
		c = color.New(color.FgRed)
	case percent < 67:
		c = color.New(color.FgYellow)
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s%4d%%", c.Sprint(bar), percent)
}

// progressPrinter draws one in-place progress line on a terminal. Workers
// report concurrently.
type progressPrinter struct {
	mu      sync.Mutex
	enabled bool
	active  bool
}

func newProgressPrinter(enabled bool) *progressPrinter {
	return &progressPrinter{enabled: enabled}
}

func (p *progressPrinter) update(file string, done, total int) {
	if !p.enabled || total == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(os.Stderr, "\r  %-32s %s %d/%d", truncateName(filepath.Base(file), 32), progressBar(done*100/total, 24), done, total)
	p.active = true
}

func (p *progressPrinter) finish(string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		fmt.Fprintln(os.Stderr)
		p.active = false
	}
}

func truncateName(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// ---------------------------------------------------------------------------
// inspect
// ---------------------------------------------------------------------------

func newInspectCmd() *cobra.Command {
	var showStrings bool

	cmd := &cobra.Command{
		Use:   "inspect [files|dirs...]",
		Short: i18n.T("Show what would be translated"),
		Long: `List the parts, text spans and distinct strings of each document without
contacting a translation service. Documents are opened read-only.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := pipeline.Expand(args, container.DefaultSuffix)
			if err != nil {
				return err
			}
			failed := 0
			for _, path := range paths {
				rep, err := pipeline.Inspect(path)
				if err != nil {
					logError("%s: %s: %v", path, pipeline.Classify(err), err)
					failed++
					continue
				}
				printReport(rep, showStrings)
			}
			if failed > 0 {
				return fmt.Errorf(i18n.N("%d of %d document failed", "%d of %d documents failed", failed), failed, len(paths))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showStrings, "strings", "s", false, i18n.T("Print the distinct strings"))
	return cmd
}

func printReport(rep *pipeline.Report, showStrings bool) {
	fmt.Printf("%s (%s, %s)\n", headingTag(rep.Path), rep.Format, rep.Strategy)
	for _, p := range rep.Parts {
		fmt.Printf("  %-40s %5d\n", p.Name, p.Spans)
	}
	fmt.Printf("  %s: %d, %s: %d\n", i18n.T("spans"), rep.Spans, i18n.T("distinct strings"), len(rep.Distinct))
	if showStrings {
		for _, s := range rep.Distinct {
			fmt.Printf("    %q\n", s)
		}
	}
}

// ---------------------------------------------------------------------------
// memo
// ---------------------------------------------------------------------------

func newMemoCmd() *cobra.Command {
	var path, clearPair string

	cmd := &cobra.Command{
		Use:   "memo",
		Short: i18n.T("Show or prune the translation memory"),
		Long: `Print the language pairs and entry counts of the translation memory.
With --clear-pair every translation recorded for that pair is removed, so
the next run sends those strings to the service again.

Examples:
  doctrans memo
  doctrans memo --memo doctrans.memo --clear-pair pl>en`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				cfg, err := config.Load(configPath, ".")
				if err != nil {
					return err
				}
				path = cfg.Memo
			}
			if path == "" {
				return errors.New(i18n.T("no translation memory configured; use --memo or set memo in .doctrans.yaml"))
			}
			return runMemo(os.Stdout, path, clearPair)
		},
	}

	cmd.Flags().StringVar(&path, "memo", "", i18n.T("Translation memory file"))
	cmd.Flags().StringVar(&clearPair, "clear-pair", "", i18n.T("Remove the translations of a language pair (e.g. pl>en)"))
	return cmd
}

func runMemo(w io.Writer, path, clearPair string) error {
	m, err := memo.Load(path)
	if err != nil {
		return err
	}
	if clearPair != "" {
		if !slices.Contains(m.Pairs(), clearPair) {
			return fmt.Errorf(i18n.T("pair %q is not in %s (pairs: %s)"), clearPair, m.Path(), strings.Join(m.Pairs(), ", "))
		}
		m.RemovePair(clearPair)
		if err := m.Save(); err != nil {
			return err
		}
		logSuccess(i18n.T("Removed %s from %s"), clearPair, m.Path())
	}
	fmt.Fprintf(w, "%s: %s\n", m.Path(), m.Summary())
	return nil
}

// ---------------------------------------------------------------------------
// languages
// ---------------------------------------------------------------------------

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: i18n.T("List known language codes"),
		Run: func(cmd *cobra.Command, args []string) {
			for _, code := range langmeta.Codes() {
				m := langmeta.Resolve(code)
				fmt.Printf("%-6s %s  %-24s %s\n", code, m.Flag, m.English, m.Native)
			}
		},
	}
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: i18n.T("Manage provider API keys"),
		Long: `Manage API keys and endpoints of translation providers.

Keys are stored in $XDG_DATA_HOME/doctrans/auth.json (mode 0600). The
--api-key flag, DOCTRANS_API_KEY and provider.api_key in .doctrans.yaml take
precedence over stored keys.

The vertex provider uses Google Application Default Credentials
(gcloud auth application-default login) and stores nothing here.

Examples:
  doctrans auth login --provider deepl
  doctrans auth login --provider libretranslate --base-url http://mt.local:5000
  doctrans auth logout --provider deepl
  doctrans auth list`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)
	return cmd
}

// storableProviders are the providers the credential store applies to.
func storableProviders() []string {
	var ids []string
	for _, id := range config.ProviderIDs() {
		if id != translate.ProviderVertex {
			ids = append(ids, id)
		}
	}
	return ids
}

func checkStorable(id string) error {
	if id == translate.ProviderVertex {
		return errors.New(i18n.T("vertex uses Application Default Credentials; run 'gcloud auth application-default login'"))
	}
	for _, p := range storableProviders() {
		if p == id {
			return nil
		}
	}
	return fmt.Errorf(i18n.T("unknown provider %q (valid: %s)"), id, strings.Join(storableProviders(), ", "))
}

func providerCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	defs := translate.DefaultProviders()
	var completions []string
	for _, id := range storableProviders() {
		completions = append(completions, fmt.Sprintf("%s\t%s", id, defs[id].Name))
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

func newAuthLoginCmd() *cobra.Command {
	var provider, key, baseURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: i18n.T("Store an API key for a provider"),
		Long: `Store an API key (and optionally an endpoint) for a provider. Without
--key the key is read from standard input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkStorable(provider); err != nil {
				return err
			}
			if key == "" && needsAPIKey(provider) {
				fmt.Fprintf(os.Stderr, i18n.T("Enter API key for %s: "), provider)
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading API key: %w", err)
				}
				key = strings.TrimSpace(line)
				if key == "" {
					return errors.New(i18n.T("API key cannot be empty"))
				}
			}
			if err := settings.SetAPIKey(provider, key, baseURL); err != nil {
				return fmt.Errorf("saving credentials: %w", err)
			}
			logSuccess(i18n.T("Credentials for %s saved to %s"), provider, settings.FilePath())
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", i18n.T("Provider to store the key for"))
	cmd.Flags().StringVar(&key, "key", "", i18n.T("API key (default: read from stdin)"))
	cmd.Flags().StringVar(&baseURL, "base-url", "", i18n.T("Provider endpoint URL"))
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.RegisterFlagCompletionFunc("provider", providerCompletion)
	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: i18n.T("Remove stored credentials"),
		Long: `Remove stored credentials for one provider, or for all providers when
--provider is not given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("%s", i18n.T("All stored credentials removed"))
				return nil
			}
			if err := checkStorable(provider); err != nil {
				return err
			}
			if err := settings.Remove(provider); err != nil {
				return fmt.Errorf("removing %s credentials: %w", provider, err)
			}
			logSuccess(i18n.T("%s credentials removed"), provider)
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", i18n.T("Provider to log out (default: all)"))
	_ = cmd.RegisterFlagCompletionFunc("provider", providerCompletion)
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   i18n.T("Show stored credentials"),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(os.Stderr, "\n%s\n", headingTag(i18n.T("Stored Credentials")))
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

			store := settings.Load()
			for _, id := range storableProviders() {
				fmt.Fprintf(os.Stderr, "  %-16s %s\n", id, credentialStatus(store[id]))
			}
			fmt.Fprintf(os.Stderr, "  %-16s %s\n", translate.ProviderVertex, i18n.T("Application Default Credentials"))

			fmt.Fprintf(os.Stderr, "\n  %s\n", warnTag(i18n.T("Environment Variables")))
			if envKey := os.Getenv(config.EnvAPIKey); envKey != "" {
				fmt.Fprintf(os.Stderr, "  %s: %s %s\n", config.EnvAPIKey, okTag(settings.MaskKey(envKey)), i18n.T("(overrides stored keys)"))
			} else {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", config.EnvAPIKey, errorTag(i18n.T("not set")))
			}
			fmt.Fprintln(os.Stderr)
		},
	}
}

// credentialStatus describes one credential store entry.
func credentialStatus(info *settings.Info) string {
	if info == nil || (info.Key == "" && info.BaseURL == "") {
		return errorTag(i18n.T("not configured"))
	}
	var status string
	if info.Key != "" {
		status = fmt.Sprintf("%s (key: %s)", okTag(i18n.T("configured")), settings.MaskKey(info.Key))
	} else {
		status = fmt.Sprintf("%s (%s)", okTag(i18n.T("configured")), i18n.T("no key"))
	}
	if info.BaseURL != "" {
		status += "  endpoint: " + info.BaseURL
	}
	return status
}
