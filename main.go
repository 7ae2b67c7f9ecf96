package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mdrbohlav/transfer-idoklad2fakturoid/cache"
	"github.com/mdrbohlav/transfer-idoklad2fakturoid/fakturoid"
	"github.com/mdrbohlav/transfer-idoklad2fakturoid/idoklad"
	"github.com/mdrbohlav/transfer-idoklad2fakturoid/transfer"
)

var (
	// Global flags
	cfgFile string
	debug   bool

	// Run command flags
	fakturoidAccount    string
	fakturoidEmail      string
	fakturoidAPIKey     string
	idokladClientID     string
	idokladClientSecret string
	idokladFilter       string
	skipVATCheck        bool
	exportPDF           bool
	exportDir           string
	cacheFile           string
)

// config mirrors the run flags; any of them can come from a YAML file,
// the environment, or the command line (in ascending precedence).
type config struct {
	FakturoidAccount    string `yaml:"fakturoid_account"`
	FakturoidEmail      string `yaml:"fakturoid_email"`
	FakturoidAPIKey     string `yaml:"fakturoid_api_key"`
	IdokladClientID     string `yaml:"idoklad_client_id"`
	IdokladClientSecret string `yaml:"idoklad_client_secret"`
	IdokladFilter       string `yaml:"idoklad_filter"`
	SkipVATCheck        bool   `yaml:"skip_vat_check"`
	ExportPDF           bool   `yaml:"export_pdf"`
	ExportDir           string `yaml:"export_dir"`
	CacheFile           string `yaml:"cache_file"`
}

var rootCmd = &cobra.Command{
	Use:   "transfer-idoklad2fakturoid",
	Short: "Transfer invoices, expenses and contacts from iDoklad to Fakturoid",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the transfer",
	Run:   runTransfer,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Display the Fakturoid response cache state",
	Run:   showCache,
}

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Test credentials against both APIs",
	Run:   testConnection,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (optional)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	for _, cmd := range []*cobra.Command{runCmd, testConnectionCmd} {
		cmd.Flags().StringVar(&fakturoidAccount, "fakturoid-account", "", "Fakturoid account name")
		cmd.Flags().StringVar(&fakturoidEmail, "fakturoid-email", "", "Fakturoid email address")
		cmd.Flags().StringVar(&fakturoidAPIKey, "fakturoid-api-key", "", "Fakturoid API key")
		cmd.Flags().StringVar(&idokladClientID, "idoklad-client-id", "", "iDoklad client ID")
		cmd.Flags().StringVar(&idokladClientSecret, "idoklad-client-secret", "", "iDoklad client secret")
	}

	runCmd.Flags().StringVar(&idokladFilter, "idoklad-filter", "", "iDoklad server-side filter expression")
	runCmd.Flags().BoolVar(&skipVATCheck, "skip-vat-check", false, "Disable the VAT number consistency check")
	runCmd.Flags().BoolVar(&exportPDF, "export-pdf", false, "Export source records as PDF files")
	runCmd.Flags().StringVar(&exportDir, "export-dir", "export", "Directory for exported PDFs")

	for _, cmd := range []*cobra.Command{runCmd, cacheCmd} {
		cmd.Flags().StringVar(&cacheFile, "cache-file", cache.DefaultPath, "Fakturoid response cache file")
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(testConnectionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	return logger.Sugar()
}

// loadConfig resolves the effective configuration: YAML file values,
// overridden by environment variables, overridden by flags set on the
// command line. A .env file is honored when present.
func loadConfig(cmd *cobra.Command) (config, error) {
	_ = godotenv.Load()

	var cfg config
	cfg.ExportDir = "export"
	cfg.CacheFile = cache.DefaultPath

	if cfgFile != "" {
		data, err := os.ReadFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	stringVars := []struct {
		flag   string
		env    string
		target *string
		value  *string
	}{
		{"fakturoid-account", "FAKTUROID_ACCOUNT", &cfg.FakturoidAccount, &fakturoidAccount},
		{"fakturoid-email", "FAKTUROID_EMAIL", &cfg.FakturoidEmail, &fakturoidEmail},
		{"fakturoid-api-key", "FAKTUROID_API_KEY", &cfg.FakturoidAPIKey, &fakturoidAPIKey},
		{"idoklad-client-id", "IDOKLAD_CLIENT_ID", &cfg.IdokladClientID, &idokladClientID},
		{"idoklad-client-secret", "IDOKLAD_CLIENT_SECRET", &cfg.IdokladClientSecret, &idokladClientSecret},
		{"idoklad-filter", "IDOKLAD_FILTER", &cfg.IdokladFilter, &idokladFilter},
		{"export-dir", "EXPORT_DIR", &cfg.ExportDir, &exportDir},
		{"cache-file", "CACHE_FILE", &cfg.CacheFile, &cacheFile},
	}
	for _, v := range stringVars {
		if env := os.Getenv(v.env); env != "" {
			*v.target = env
		}
		if cmd.Flags().Lookup(v.flag) != nil && cmd.Flags().Changed(v.flag) {
			*v.target = *v.value
		}
	}

	if cmd.Flags().Lookup("skip-vat-check") != nil && cmd.Flags().Changed("skip-vat-check") {
		cfg.SkipVATCheck = skipVATCheck
	}
	if cmd.Flags().Lookup("export-pdf") != nil && cmd.Flags().Changed("export-pdf") {
		cfg.ExportPDF = exportPDF
	}

	return cfg, nil
}

func (c config) validate() error {
	var missing []string
	required := map[string]string{
		"fakturoid-account":     c.FakturoidAccount,
		"fakturoid-email":       c.FakturoidEmail,
		"fakturoid-api-key":     c.FakturoidAPIKey,
		"idoklad-client-id":     c.IdokladClientID,
		"idoklad-client-secret": c.IdokladClientSecret,
	}
	for name, value := range required {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing credentials: %s (flags, env vars or config file)", strings.Join(missing, ", "))
	}
	return nil
}

// confirmStdin asks the operator for a y/n answer on the terminal.
func confirmStdin(prompt string) bool {
	fmt.Println("\n" + prompt)
	fmt.Print("Do you want to continue anyway? [y/n] ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "y"
}

func runTransfer(cmd *cobra.Command, args []string) {
	log := newLogger()
	defer log.Sync()

	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.validate(); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	source := idoklad.NewClient(
		idoklad.NewTokenClient(ctx, cfg.IdokladClientID, cfg.IdokladClientSecret),
		cfg.IdokladFilter,
		log,
	)

	invoices, err := source.GetInvoices()
	if err != nil {
		log.Fatal(err)
	}
	expenses, err := source.GetExpenses()
	if err != nil {
		log.Fatal(err)
	}

	responseCache := cache.NewManager(cfg.CacheFile)
	if err := responseCache.Load(); err != nil {
		log.Warnf("%v. Continuing with an empty cache.", err)
	}

	destination := fakturoid.NewClient(cfg.FakturoidAccount, cfg.FakturoidEmail, cfg.FakturoidAPIKey, log)

	state := &transfer.State{}
	if state.Account, err = destination.GetAccount(responseCache.Resource("account")); err != nil {
		log.Fatal(err)
	}
	if state.Invoices, err = destination.GetInvoices(responseCache.Resource("invoices")); err != nil {
		log.Fatal(err)
	}
	if state.Expenses, err = destination.GetExpenses(responseCache.Resource("expenses")); err != nil {
		log.Fatal(err)
	}
	if state.Subjects, err = destination.GetSubjects(responseCache.Resource("subjects")); err != nil {
		log.Fatal(err)
	}
	if state.BankAccounts, err = destination.GetBankAccounts(responseCache.Resource("bank_accounts")); err != nil {
		log.Fatal(err)
	}

	if err := responseCache.Save(); err != nil {
		log.Warnf("could not save cache: %v", err)
	}

	processor := &transfer.Processor{
		Source:       source,
		Destination:  destination,
		Confirm:      confirmStdin,
		Log:          log,
		SkipVATCheck: cfg.SkipVATCheck,
		ExportPDF:    cfg.ExportPDF,
		ExportDir:    cfg.ExportDir,
	}

	totals, err := processor.Run(invoices, expenses, state)
	if err != nil {
		log.Fatal(err)
	}

	log.Infof("Created %d invoices and %d expenses", totals.Invoices, totals.Expenses)
}

func showCache(cmd *cobra.Command, args []string) {
	responseCache := cache.NewManager(cacheFile)
	if err := responseCache.Load(); err != nil {
		fmt.Printf("Cache at %s could not be read: %v\n", cacheFile, err)
		return
	}

	fmt.Printf("Cache file: %s\n\n", responseCache.Path)

	resources := make([]string, 0, len(responseCache.Pages))
	for name := range responseCache.Pages {
		resources = append(resources, name)
	}
	sort.Strings(resources)

	for _, name := range resources {
		pages := responseCache.Pages[name]
		withData := 0
		for _, entry := range pages {
			if entry.Data != nil {
				withData++
			}
		}
		fmt.Printf("  %-14s %d page(s) cached, %d with data\n", name, len(pages), withData)
	}
}

func testConnection(cmd *cobra.Command, args []string) {
	log := newLogger()
	defer log.Sync()

	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.validate(); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Testing iDoklad credentials...")
	if err := idoklad.VerifyCredentials(context.Background(), cfg.IdokladClientID, cfg.IdokladClientSecret); err != nil {
		log.Fatalf("iDoklad authentication failed: %v", err)
	}
	fmt.Println("iDoklad authentication successful.")

	fmt.Println("Testing Fakturoid credentials...")
	destination := fakturoid.NewClient(cfg.FakturoidAccount, cfg.FakturoidEmail, cfg.FakturoidAPIKey, log)
	account, err := destination.GetAccount(map[int]*cache.Entry{})
	if err != nil {
		log.Fatalf("Fakturoid request failed: %v", err)
	}
	fmt.Printf("Fakturoid connection successful: account %q\n", account.Name)
}
