package main

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/japaniel/clozer/pkg/classify"
	"github.com/japaniel/clozer/pkg/config"
	"github.com/japaniel/clozer/pkg/corpus"
	"github.com/japaniel/clozer/pkg/db"
	"github.com/japaniel/clozer/pkg/dictionary"
	"github.com/japaniel/clozer/pkg/generate"
	"github.com/japaniel/clozer/pkg/lemma"
	"github.com/japaniel/clozer/pkg/practice"
	"github.com/japaniel/clozer/pkg/srs"
)

// app carries what every subcommand shares. The database is opened on
// first use so that help and flag errors never touch the disk.
type app struct {
	v      *viper.Viper
	cfg    config.Config
	logger *zap.Logger
	conn   *sql.DB
	client *http.Client
	// now is the clock used for answer latency.
	now func() time.Time
}

func newApp() *app {
	return &app{
		v:      config.New(),
		logger: zap.NewNop(),
		client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
	}
}

// run executes one command line against a fresh app.
func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	a := newApp()
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:   "clozer",
		Short: "Vocabulary practice with fill-in-the-blank sentences and spaced repetition",
		Long: `clozer imports a lexicon and real articles, cuts cloze sentences for the
words it knows, and quizzes you on the words that are due.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cfgPath)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "config file (default "+config.DefaultConfigPath+" if present)")
	pf.String("db", "", "path to the SQLite database")
	pf.String("language", "", "ISO 639-1 code of the studied language")
	pf.Int64("learner", 0, "learner id")
	pf.String("log-level", "", "debug, info, warn or error")
	for key, flag := range map[string]string{
		"db":        "db",
		"language":  "language",
		"learner":   "learner",
		"log.level": "log-level",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		a.importLexiconCmd(),
		a.importArticleCmd(),
		a.dueCmd(),
		a.practiceCmd(),
		a.classifyCmd(),
		a.summaryCmd(),
	)
	return root
}

func (a *app) load(path string) error {
	cfg, err := config.Load(a.v, path)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) database() (*sql.DB, error) {
	if a.conn != nil {
		return a.conn, nil
	}
	conn, err := db.Open(a.cfg.DB)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("database opened", zap.String("path", a.cfg.DB))
	a.conn = conn
	return conn, nil
}

func (a *app) close() {
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// lexicon rebuilds the configured language's lexicon from the word store.
func (a *app) lexicon(ctx context.Context) (*lemma.Lexicon, error) {
	conn, err := a.database()
	if err != nil {
		return nil, err
	}
	return dictionary.FromStore(ctx, conn, a.cfg.Language)
}

// lemmatizers puts the lexicon first, then the language's morphological
// fallback: kagome for Japanese, a Snowball stemmer where one exists.
func (a *app) lemmatizers(lex *lemma.Lexicon) []lemma.Lemmatizer {
	ls := []lemma.Lemmatizer{lex}
	if a.cfg.Language == "ja" {
		j, err := lemma.NewJapanese()
		if err != nil {
			a.logger.Warn("japanese lemmatizer unavailable", zap.Error(err))
			return ls
		}
		return append(ls, j)
	}
	st, err := lemma.NewStemmer(a.cfg.Language)
	if err != nil {
		a.logger.Debug("no stemmer for language", zap.String("language", a.cfg.Language))
		return ls
	}
	return append(ls, st)
}

// analyzer tokenizes the configured language. Latin-script base forms come
// from the lexicon only; stems would never equal a stored lemma.
func (a *app) analyzer(lex *lemma.Lexicon) (corpus.Analyzer, error) {
	if a.cfg.Language == "ja" {
		return corpus.NewJapaneseAnalyzer()
	}
	return corpus.LatinAnalyzer{Lemmatizers: []lemma.Lemmatizer{lex}}, nil
}

func (a *app) classifier(lex *lemma.Lexicon) *classify.Classifier {
	return classify.New(classify.Config{MaxEdits: a.cfg.Classifier.MaxEdits}, lex, a.lemmatizers(lex)...)
}

// engine wires a practice engine: stored sentences first, then generated
// ones when an OpenAI key is configured.
func (a *app) engine(ctx context.Context) (*practice.Engine, error) {
	conn, err := a.database()
	if err != nil {
		return nil, err
	}
	lex, err := a.lexicon(ctx)
	if err != nil {
		return nil, err
	}
	srsCfg, err := a.cfg.Scheduler.SRS()
	if err != nil {
		return nil, err
	}
	sched, err := srs.NewScheduler(srsCfg)
	if err != nil {
		return nil, err
	}

	store := db.NewStore(conn, a.cfg.Language)
	providers := practice.Providers{store}
	if a.cfg.OpenAI.APIKey != "" {
		gen := generate.New(generate.Config{
			APIKey:            a.cfg.OpenAI.APIKey,
			BaseURL:           a.cfg.OpenAI.BaseURL,
			Model:             a.cfg.OpenAI.Model,
			RequestsPerMinute: a.cfg.OpenAI.RequestsPerMinute,
		}, lex, a.logger)
		if gen.Analyzer, err = a.analyzer(lex); err != nil {
			return nil, err
		}
		providers = append(providers, &generate.Provider{Generator: gen, Store: store, Logger: a.logger})
	}

	e := practice.NewEngine(a.cfg.LearnerID(), store, sched, a.classifier(lex), providers, a.logger)
	e.NewWords = a.cfg.Practice.NewWords
	return e, nil
}
