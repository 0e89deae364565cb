package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/NovelGoat/internal/export"
	"github.com/IshaanNene/NovelGoat/internal/media"
	"github.com/IshaanNene/NovelGoat/internal/scraper"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scrape [url]",
		Short: "Scrape a novel's metadata and chapter list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg)
			ctx, cancel := signalContext(logger)
			defer cancel()

			novel, err := scraper.New(cfg, logger).ScrapeNovel(ctx, args[0])
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(novel)
			}

			fmt.Printf("Title:       %s\n", novel.Title)
			if novel.Author != "" {
				fmt.Printf("Author:      %s\n", novel.Author)
			}
			if novel.CoverURL != "" {
				fmt.Printf("Cover:       %s\n", novel.CoverURL)
			}
			fmt.Printf("Chapters:    %d\n", len(novel.Chapters))
			if novel.Description != "" {
				fmt.Printf("\n%s\n", novel.Description)
			}
			fmt.Println()
			for _, ch := range novel.Chapters {
				fmt.Printf("%5d. %s\n", ch.Index+1, ch.Title)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the novel as JSON")
	return cmd
}

// chapterCmd creates the "chapter" subcommand.
func chapterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chapter [url]",
		Short: "Fetch and print a single chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg)
			ctx, cancel := signalContext(logger)
			defer cancel()

			ch := scraper.New(cfg, logger).FetchChapter(ctx, &types.Chapter{
				URL:   args[0],
				Title: types.PlaceholderTitle,
			})
			if !ch.HasContent() {
				return fmt.Errorf("%s: %w", args[0], types.ErrNoContent)
			}
			fmt.Printf("%s\n\n%s\n", ch.Title, ch.Content)
			return nil
		},
	}
}

// downloadCmd creates the "download" subcommand.
func downloadCmd() *cobra.Command {
	var (
		from   int
		to     int
		format string
		output string
		delay  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "download [url]",
		Short: "Download a range of chapters to a TXT, EPUB, PDF or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output") {
				cfg.Export.OutputDir = output
			}
			if !cmd.Flags().Changed("format") {
				format = cfg.Export.DefaultFormat
			}
			if !cmd.Flags().Changed("delay") {
				delay = cfg.Scraper.ChapterDelay
			}
			if _, err := export.New(format); err != nil {
				return err
			}
			if from < 1 {
				return errors.New("--from must be at least 1")
			}

			logger := setupLogger(cfg)
			ctx, cancel := signalContext(logger)
			defer cancel()

			sc := scraper.New(cfg, logger)
			novel, err := sc.ScrapeNovel(ctx, args[0])
			if err != nil {
				return err
			}

			last := len(novel.Chapters)
			if to > 0 {
				last = to
			}
			chapters := novel.Range(from-1, last-1)
			if len(chapters) == 0 {
				return fmt.Errorf("no chapters in range %d-%d (novel has %d)", from, last, len(novel.Chapters))
			}

			fmt.Fprintf(os.Stderr, "Downloading %d chapters of %q\n", len(chapters), novel.Title)
			bar := newProgressBar(os.Stderr, len(chapters))
			chapters, err = sc.FetchChapters(ctx, chapters, delay, trackProgress(bar))
			if err != nil {
				fmt.Fprintln(os.Stderr)
				return err
			}

			cover := export.LoadCover(ctx, media.NewDownloader(cfg.Fetcher, logger), format, novel, logger)
			path, err := export.NewWriter(cfg.Export.OutputDir, logger).Write(format, novel, chapters, export.WithCover(cover))
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}

	cmd.Flags().IntVar(&from, "from", 1, "first chapter number (1-based)")
	cmd.Flags().IntVar(&to, "to", 0, "last chapter number (0 for all)")
	cmd.Flags().StringVarP(&format, "format", "f", "txt", "output format: "+strings.Join(export.Formats(), ", "))
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory")
	cmd.Flags().DurationVar(&delay, "delay", 0, "pause between chapter fetches")
	return cmd
}

// newProgressBar draws chapter progress on w and ends the line once
// total is reached.
func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("chapters"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}

// trackProgress moves bar to the batch's done count.
func trackProgress(bar *progressbar.ProgressBar) scraper.ProgressFunc {
	return func(done, total int) {
		bar.Set(done)
	}
}

// searchCmd creates the "search" subcommand.
func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query...]",
		Short: "Search aggregator sites for a novel by title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg)
			ctx, cancel := signalContext(logger)
			defer cancel()

			results, err := scraper.New(cfg, logger).Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No results found.")
				return nil
			}
			for i, r := range results {
				fmt.Printf("%2d. %s", i+1, r.Title)
				if r.Source != "" {
					fmt.Printf(" (%s)", r.Source)
				}
				fmt.Printf("\n    %s\n", r.URL)
			}
			return nil
		},
	}
}
