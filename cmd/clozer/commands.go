package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/japaniel/clozer/pkg/corpus"
	"github.com/japaniel/clozer/pkg/db"
	"github.com/japaniel/clozer/pkg/dictionary"
	"github.com/japaniel/clozer/pkg/ingest"
	"github.com/japaniel/clozer/pkg/lemma"
	"github.com/japaniel/clozer/pkg/practice"
	"github.com/japaniel/clozer/pkg/session"
	"github.com/japaniel/clozer/pkg/vocab"
)

func (a *app) importLexiconCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-lexicon [file]",
		Short: "Load a lexicon file into the word store",
		Long: `Reads a JSON lexicon (a bare array or {"entries": [...]}) and stores every
lemma with its forms and spelling variants. When the file is missing and
lexicon_url is configured it is downloaded first. Entries without a
language get the configured one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			path := a.cfg.Lexicon
			if len(args) == 1 {
				path = args[0]
			}
			if err := dictionary.EnsureLexicon(ctx, a.client, a.logger, path, a.cfg.LexiconURL); err != nil {
				return err
			}

			fmt.Fprintf(out, "Loading lexicon from %s...\n", path)
			entries, err := lemma.LoadLexicon(path)
			if err != nil {
				return fmt.Errorf("load lexicon: %w", err)
			}
			for i := range entries {
				if entries[i].Language == "" {
					entries[i].Language = a.cfg.Language
				}
			}

			conn, err := a.database()
			if err != nil {
				return err
			}
			importer := dictionary.NewImporter(conn, lemma.NewLexicon(entries), a.logger)
			count, err := importer.Import(ctx)
			if err != nil {
				return fmt.Errorf("import lexicon: %w", err)
			}
			updated, err := importer.ProcessUpdates(ctx)
			if err != nil {
				return fmt.Errorf("update words: %w", err)
			}
			fmt.Fprintf(out, "Imported %d entries, updated %d words.\n", count, updated)
			return nil
		},
	}
}

func (a *app) importArticleCmd() *cobra.Command {
	var rawURL, file string
	cmd := &cobra.Command{
		Use:   "import-article",
		Short: "Cut cloze sentences from a web article or a local text file",
		Long: `Extracts the readable text of a page (or reads a plain text file), splits it
into sentences and stores a cloze sentence for every known word found.
Re-running on the same source resumes after the last processed sentence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var article corpus.Article
			var sourceType string
			switch {
			case rawURL != "":
				fmt.Fprintf(out, "Fetching %s...\n", rawURL)
				var err error
				if article, err = corpus.FetchArticle(ctx, a.client, rawURL); err != nil {
					return err
				}
				sourceType = "website_article"
			case file != "":
				body, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				abs, err := filepath.Abs(file)
				if err != nil {
					return err
				}
				article = corpus.Article{URL: abs, Title: filepath.Base(file), Text: string(body)}
				sourceType = "text_file"
			default:
				return fmt.Errorf("%w: one of --url or --file is required", vocab.ErrInvalidInput)
			}
			fmt.Fprintf(out, "Title: %s\n", article.Title)

			conn, err := a.database()
			if err != nil {
				return err
			}
			sourceID, err := db.CreateOrGetSource(ctx, conn, sourceType, article.Title, article.Byline, article.SiteName, article.URL, "")
			if err != nil {
				return fmt.Errorf("persist source: %w", err)
			}

			lex, err := a.lexicon(ctx)
			if err != nil {
				return err
			}
			analyzer, err := a.analyzer(lex)
			if err != nil {
				return fmt.Errorf("create analyzer: %w", err)
			}
			sentences, err := corpus.AnalyzeDocument(analyzer, article.Text)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}
			fmt.Fprintf(out, "Analyzed %d sentences.\n", len(sentences))

			ingester := ingest.NewIngester(conn, a.cfg.Language, a.logger)
			ingester.Workers = a.cfg.Ingest.Workers
			ingester.BatchSize = a.cfg.Ingest.BatchSize
			ingester.OnProgress = func(current, total int) {
				a.logger.Debug("ingest progress", zap.Int("current", current), zap.Int("total", total))
			}
			stored, err := ingester.Ingest(ctx, sourceID, sentences)
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}
			fmt.Fprintf(out, "Processing complete. Stored %d cloze sentences.\n", stored)
			return nil
		},
	}
	cmd.Flags().StringVar(&rawURL, "url", "", "article URL to fetch")
	cmd.Flags().StringVar(&file, "file", "", "plain text file to read instead of a URL")
	cmd.MarkFlagsMutuallyExclusive("url", "file")
	return cmd
}

func (a *app) dueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "due",
		Short: "List the words due for review, most overdue first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			e, err := a.engine(ctx)
			if err != nil {
				return err
			}
			due, err := e.Due(ctx)
			if err != nil {
				return err
			}
			if len(due) == 0 {
				fmt.Fprintln(out, "Nothing due.")
				return nil
			}
			for _, st := range due {
				w, err := e.Store.GetWord(ctx, st.WordID)
				if err != nil {
					return err
				}
				n, err := db.CountClozeSentences(ctx, a.conn, w.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-20s strength %d  due %s  %d sentence(s)\n",
					w.Text, st.Strength, st.NextReviewAt.Local().Format(time.DateTime), n)
			}
			fmt.Fprintf(out, "%d word(s) due.\n", len(due))
			return nil
		},
	}
}

func (a *app) practiceCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Answer cloze sentences for the words that are due",
		Long: `Shows one blanked sentence at a time and reads your answer from stdin.
An empty input or ":q" ends the session; the summary is printed and saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			e, err := a.engine(ctx)
			if err != nil {
				return err
			}
			s, err := e.Start(ctx)
			if err != nil {
				return err
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for n := 0; limit <= 0 || n < limit; n++ {
				turn, err := s.Next(ctx)
				if errors.Is(err, practice.ErrNothingDue) {
					fmt.Fprintln(out, "Nothing left to review.")
					break
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "\n[%d] %s\n> ", turn.Seq, turn.Sentence.Blanked)
				shown := a.now()
				if !scanner.Scan() {
					break
				}
				answer := strings.TrimSpace(scanner.Text())
				if answer == "" || answer == ":q" {
					break
				}

				fb, err := s.Submit(ctx, turn, answer, a.now().Sub(shown))
				if err != nil {
					return err
				}
				if fb.Judgement.Outcome == vocab.Correct {
					fmt.Fprintln(out, "Correct.")
				} else {
					fmt.Fprintf(out, "Not quite: expected %q (%s).\n", fb.Expected, fb.Judgement.ErrorKind)
				}
				if fb.Drill {
					fmt.Fprintf(out, "%q keeps slipping. Try conjugating it through a few tenses.\n", turn.Word.Lemma)
				}
			}
			if err := scanner.Err(); err != nil {
				return err
			}

			sum, err := s.End(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nSession %s\n%s\n", s.ID, session.Render(sum))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "max", 20, "stop after this many sentences (0 for no limit)")
	return cmd
}

func (a *app) classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <word-id> <answer>",
		Short: "Judge an answer against a stored word without recording it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: word id %q", vocab.ErrInvalidInput, args[0])
			}
			conn, err := a.database()
			if err != nil {
				return err
			}
			w, err := db.GetWord(ctx, conn, id)
			if err != nil {
				return err
			}
			lex, err := a.lexicon(ctx)
			if err != nil {
				return err
			}
			j, err := a.classifier(lex).Classify(w, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "word:     %s\noutcome:  %s\nerror:    %s\nnearest:  %s (distance %d)\n",
				w.Text, j.Outcome, j.ErrorKind, j.Nearest, j.Distance)
			return nil
		},
	}
}

func (a *app) summaryCmd() *cobra.Command {
	var attempts bool
	cmd := &cobra.Command{
		Use:   "summary <session-id>",
		Short: "Print the saved summary of a past session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			conn, err := a.database()
			if err != nil {
				return err
			}
			sum, err := db.NewStore(conn, a.cfg.Language).Summary(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, session.Render(sum))
			if !attempts {
				return nil
			}

			log, err := db.ListAttempts(ctx, conn, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			for _, at := range log {
				mark := "ok"
				if at.Outcome != vocab.Correct {
					mark = at.ErrorKind.String()
				}
				fmt.Fprintf(out, "%s  %-15s %-15s %-12s %s\n",
					at.At.Local().Format(time.TimeOnly), at.Word, at.Answer, mark, at.Latency.Round(100*time.Millisecond))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&attempts, "attempts", false, "also list every answer of the session")
	return cmd
}
