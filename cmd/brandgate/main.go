package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scout-edge/brandgate/internal/config"
	"github.com/scout-edge/brandgate/internal/db"
	"github.com/scout-edge/brandgate/internal/lexicon"
	"github.com/scout-edge/brandgate/internal/matcher"
	"github.com/scout-edge/brandgate/internal/pipeline"
	"github.com/scout-edge/brandgate/internal/quality"
	"github.com/scout-edge/brandgate/internal/record"
	"github.com/scout-edge/brandgate/internal/registry"
	"github.com/scout-edge/brandgate/internal/report"
	"github.com/scout-edge/brandgate/internal/resolve"
	"github.com/scout-edge/brandgate/internal/rules"
	"github.com/scout-edge/brandgate/internal/web"
)

var (
	cfg *config.Config
	log = logrus.New()
)

func main() {
	cfg = config.Load()

	rootCmd := &cobra.Command{
		Use:   "brandgate",
		Short: "Scout Edge transaction validation gate",
		Long:  `Validates retail transaction records: brand matching, field validation, quality scoring and duplicate conflict resolution`,
	}

	rootCmd.AddCommand(createValidateCmd())
	rootCmd.AddCommand(createResolveCmd())
	rootCmd.AddCommand(createLexiconCmd())
	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createPingCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// connect opens the Postgres connection described by the environment.
func connect() *db.Connection {
	conn, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return conn
}

// loadLexicon reads the brand lexicon from a JSON file when a path is
// given, otherwise from the database.
func loadLexicon(path string, conn *db.Connection) *lexicon.Lexicon {
	if path != "" {
		lex, err := lexicon.LoadFile(path)
		if err != nil {
			log.Fatalf("Failed to load lexicon file: %v", err)
		}
		return lex
	}
	if conn == nil {
		conn = connect()
		defer conn.Close()
	}
	lex, err := lexicon.LoadDB(conn.DB)
	if err != nil {
		log.Fatalf("Failed to load lexicon from database: %v", err)
	}
	return lex
}

func matcherConfig() matcher.Config {
	mc := matcher.DefaultConfig()
	mc.FuzzyMinSimilarity = cfg.FuzzyMinSimilarity
	mc.BoostPerKeyword = cfg.ContextBoostPerKeyword
	return mc
}

func qualityScorer() *quality.Scorer {
	return quality.NewScorerWith(quality.Thresholds{
		Excellent: cfg.BucketExcellent,
		Good:      cfg.BucketGood,
		Marginal:  cfg.BucketMarginal,
	})
}

func validatorConfig() rules.Config {
	return rules.Config{
		BusinessAmountMax:  cfg.BusinessAmountMax,
		BusinessAmountSoft: cfg.BusinessAmountSoft,
		TranscriptMaxLen:   cfg.TranscriptMaxLen,
		CrossSystemTimeout: cfg.CrossSystemTimeout,
	}
}

func createValidateCmd() *cobra.Command {
	var lexiconPath string
	var workers int
	var save bool

	cmd := &cobra.Command{
		Use:   "validate [records.json]",
		Short: "Validate a batch of transaction records",
		Long:  `Run the full validation pass over a batch of transaction records and print a report per record. Records come from a JSON array file, or from the transaction_staging table when no file is given`,
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var conn *db.Connection
			var sink pipeline.Sink
			var reg registry.StoreRegistry
			if save || len(args) == 0 {
				conn = connect()
				defer conn.Close()
			}
			if save {
				sink = report.NewStore(conn.DB)
				reg = registry.NewPostgresRegistry(conn.DB)
			}

			var records []*record.TransactionRecord
			var err error
			if len(args) == 1 {
				records, err = readRecords(args[0])
			} else {
				records, err = readStagedRecords(conn)
			}
			if err != nil {
				log.Fatalf("Failed to read records: %v", err)
			}

			lex := loadLexicon(lexiconPath, conn)
			m := matcher.New(lex, matcherConfig())
			v := rules.New(validatorConfig(), reg)

			if workers <= 0 {
				workers = cfg.BatchWorkers
			}
			runner := pipeline.NewRunner(m, v, qualityScorer(), workers, sink, log)

			reports, stats, err := runner.Run(context.Background(), records)
			if err != nil {
				log.Fatalf("Batch failed: %v", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			for _, rep := range reports {
				if err := enc.Encode(rep); err != nil {
					log.Fatalf("Failed to encode report: %v", err)
				}
			}

			fmt.Printf("\n=== Batch Results ===\n")
			fmt.Printf("Total: %d\n", stats.Total)
			fmt.Printf("Passed: %d\n", stats.Passed)
			fmt.Printf("Warned: %d\n", stats.Warned)
			fmt.Printf("Failed: %d\n", stats.Failed)
			fmt.Printf("Quarantined: %d\n", stats.Quarantined)
			fmt.Printf("Elapsed: %s\n", stats.Elapsed)
		},
	}

	cmd.Flags().StringVar(&lexiconPath, "lexicon", "", "Lexicon JSON file (default: load from database)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker pool size (default: BATCH_WORKERS)")
	cmd.Flags().BoolVar(&save, "save", false, "Persist reports and use the database store registry")

	return cmd
}

// pairFile is the input format for the resolve command.
type pairFile struct {
	Left  record.TransactionRecord `json:"left"`
	Right record.TransactionRecord `json:"right"`
}

func createResolveCmd() *cobra.Command {
	var lexiconPath string
	var save bool

	cmd := &cobra.Command{
		Use:   "resolve [pairs.json]",
		Short: "Resolve duplicate record pairs",
		Long:  `Read a JSON array of {left, right} record pairs and decide the authoritative version of each`,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				log.Fatalf("Failed to read pairs file: %v", err)
			}
			var pairs []pairFile
			if err := json.Unmarshal(data, &pairs); err != nil {
				log.Fatalf("Failed to parse pairs file: %v", err)
			}

			var conn *db.Connection
			var store *report.Store
			if save {
				conn = connect()
				defer conn.Close()
				store = report.NewStore(conn.DB)
			}

			lex := loadLexicon(lexiconPath, conn)
			m := matcher.New(lex, matcherConfig())
			v := rules.New(validatorConfig(), nil)
			resolver := resolve.New(m, v, cfg.DuplicateTimeWindow)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			for _, p := range pairs {
				left, right := p.Left, p.Right
				decision, err := resolver.Resolve(context.Background(), &left, &right)
				if err != nil {
					log.Fatalf("Failed to resolve pair %s/%s: %v", left.ID, right.ID, err)
				}
				if store != nil {
					if err := store.SaveDecision(decision); err != nil {
						log.Fatalf("Failed to save decision: %v", err)
					}
				}
				if err := enc.Encode(decision); err != nil {
					log.Fatalf("Failed to encode decision: %v", err)
				}
			}
		},
	}

	cmd.Flags().StringVar(&lexiconPath, "lexicon", "", "Lexicon JSON file (default: load from database)")
	cmd.Flags().BoolVar(&save, "save", false, "Persist conflict decisions")

	return cmd
}

func createLexiconCmd() *cobra.Command {
	lexiconCmd := &cobra.Command{
		Use:   "lexicon",
		Short: "Manage the brand lexicon",
	}
	lexiconCmd.AddCommand(createLexiconImportCmd())
	return lexiconCmd
}

func createLexiconImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [lexicon.json]",
		Short: "Import brand lexicon entries into the database",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			conn := connect()
			defer conn.Close()

			n, err := lexicon.ImportFile(conn.DB, args[0])
			if err != nil {
				log.Fatalf("Failed to import lexicon: %v", err)
			}
			fmt.Printf("Imported %d lexicon entries\n", n)
		},
	}
}

func createServeCmd() *cobra.Command {
	var lexiconPath string
	var apiKey string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the validation HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			conn := connect()
			defer conn.Close()

			lex := loadLexicon(lexiconPath, conn)
			m := matcher.New(lex, matcherConfig())
			v := rules.New(validatorConfig(), registry.NewPostgresRegistry(conn.DB))
			store := report.NewStore(conn.DB)

			server := web.NewServer(cfg.ServeAddr, apiKey, m, v, qualityScorer(), store, log)
			if err := server.Start(); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		},
	}

	cmd.Flags().StringVar(&lexiconPath, "lexicon", "", "Lexicon JSON file (default: load from database)")
	cmd.Flags().StringVar(&apiKey, "api-key", config.GetEnv("API_KEY", ""), "Require this X-API-Key header on API routes")

	return cmd
}

func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		Run: func(cmd *cobra.Command, args []string) {
			conn := connect()
			defer conn.Close()
			fmt.Println("Database connection successful!")

			var count int
			if err := conn.DB.QueryRow("SELECT COUNT(*) FROM brand_lexicon").Scan(&count); err != nil {
				log.Printf("Error counting brand_lexicon entries: %v", err)
			} else {
				fmt.Printf("Lexicon entries loaded: %d\n", count)
			}

			if err := conn.DB.QueryRow("SELECT COUNT(*) FROM validation_report").Scan(&count); err != nil {
				log.Printf("Error counting validation_report rows: %v", err)
			} else {
				fmt.Printf("Validation reports stored: %d\n", count)
			}
		},
	}
}

// readStagedRecords pulls the pending batch from the staging table.
func readStagedRecords(conn *db.Connection) ([]*record.TransactionRecord, error) {
	rows, err := conn.DB.Query(`
		SELECT id, source, timestamp, amount, quantity,
		       COALESCE(transcript, ''), COALESCE(brand_name, ''), COALESCE(sku, ''),
		       COALESCE(store_id, ''), COALESCE(device_id, ''),
		       latitude, longitude, COALESCE(checksum, '')
		FROM transaction_staging
		ORDER BY timestamp
	`)
	if err != nil {
		return nil, fmt.Errorf("querying transaction_staging: %w", err)
	}
	defer rows.Close()

	var records []*record.TransactionRecord
	for rows.Next() {
		rec := &record.TransactionRecord{}
		var amount string
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Timestamp, &amount, &rec.Quantity,
			&rec.Transcript, &rec.BrandName, &rec.SKU,
			&rec.StoreID, &rec.DeviceID,
			&rec.Latitude, &rec.Longitude, &rec.Checksum); err != nil {
			return nil, fmt.Errorf("scanning staged record: %w", err)
		}
		rec.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parsing amount for %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func readRecords(path string) ([]*record.TransactionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []*record.TransactionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return records, nil
}
