package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/nikbrunner/bmclean/internal/analytics"
	"github.com/nikbrunner/bmclean/internal/dedupe"
	"github.com/nikbrunner/bmclean/internal/exporter"
	"github.com/nikbrunner/bmclean/internal/health"
	"github.com/nikbrunner/bmclean/internal/importer"
	"github.com/nikbrunner/bmclean/internal/model"
	"github.com/nikbrunner/bmclean/internal/oracle"
	"github.com/nikbrunner/bmclean/internal/organizer"
	"github.com/nikbrunner/bmclean/internal/search"
	"github.com/nikbrunner/bmclean/internal/storage"
	"github.com/nikbrunner/bmclean/internal/tree"
	"github.com/nikbrunner/bmclean/internal/tui"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	pathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
)

func main() {
	// .env is optional; the API key may come from the environment.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printHelp()
		return
	}

	switch os.Args[1] {
	case "help", "--help", "-h":
		printHelp()
	case "stats":
		requireFile("stats <file.html>")
		runStats(os.Args[2])
	case "dups":
		requireFile("dups <file.html> [--probe]")
		runDups(os.Args[2], hasFlag("--probe"))
	case "dedupe":
		requireFile("dedupe <file.html> [out.html] [--probe]")
		runDedupe(os.Args[2], argAt(3), hasFlag("--probe"))
	case "empty":
		requireFile("empty <file.html>")
		runEmpty(os.Args[2])
	case "prune":
		requireFile("prune <file.html> [out.html]")
		runPrune(os.Args[2], argAt(3))
	case "audit":
		requireFile("audit <file.html>")
		runAudit(os.Args[2])
	case "fix":
		requireFile("fix <file.html> [out.html]")
		runFix(os.Args[2], argAt(3))
	case "search":
		if len(os.Args) < 4 {
			fmt.Fprintf(os.Stderr, "Usage: bmclean search <file.html> <query>\n")
			os.Exit(1)
		}
		runSearch(os.Args[2], os.Args[3])
	case "reports":
		runReports(argAt(2))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	help := `bmclean - bookmark export cleanup tool

Usage:
  bmclean stats <file>            Keyword, domain, timeline and age analytics
  bmclean dups <file>             Report duplicate URLs with keep/remove ranking
  bmclean dedupe <file> [out]     Remove ranked duplicates, write cleaned export
                                  (--probe removes dead duplicate groups wholesale)
  bmclean empty <file>            Report empty folders
  bmclean prune <file> [out]      Remove empty folders, write cleaned export
  bmclean audit <file>            Two-stage link health audit (probe + AI)
  bmclean fix <file> [out]        Full cleanup: dedupe, drop dead links, re-categorize
  bmclean search <file> <query>   Fuzzy search, copy best match URL to clipboard
  bmclean reports [id]            List archived audit runs / show one run
  bmclean help                    Show this help

The AI-backed commands (audit, fix) need ANTHROPIC_API_KEY in the
environment or a .env file.

Config: ~/.config/bmclean/config.json
Audit archive: ~/.config/bmclean/audits.db
`
	fmt.Print(help)
}

func requireFile(usage string) {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: bmclean %s\n", usage)
		os.Exit(1)
	}
}

// argAt returns the i-th positional argument, skipping flags.
func argAt(i int) string {
	args := make([]string, 0, len(os.Args))
	for _, arg := range os.Args {
		if !strings.HasPrefix(arg, "--") {
			args = append(args, arg)
		}
	}
	if len(args) > i {
		return args[i]
	}
	return ""
}

func hasFlag(name string) bool {
	for _, arg := range os.Args[2:] {
		if arg == name {
			return true
		}
	}
	return false
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// loadTree imports the given bookmark HTML export.
func loadTree(path string) *model.Folder {
	file, err := os.Open(path)
	if err != nil {
		fail("Error opening file: %v", err)
	}
	defer file.Close()

	root, err := importer.ParseHTMLBookmarks(file)
	if err != nil {
		fail("Error parsing %s: %v", path, err)
	}
	return root
}

func loadConfig() *storage.Config {
	path, err := storage.DefaultConfigFilePath()
	if err != nil {
		fail("Error getting config path: %v", err)
	}
	config, err := storage.LoadConfig(path)
	if err != nil {
		fail("Error loading config: %v", err)
	}
	return config
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func writeExport(root *model.Folder, outputPath string) {
	if outputPath == "" {
		var err error
		outputPath, err = exporter.DefaultExportPath()
		if err != nil {
			fail("Error getting default export path: %v", err)
		}
	}
	if err := os.WriteFile(outputPath, []byte(exporter.ExportHTML(root)), 0644); err != nil {
		fail("Error writing file: %v", err)
	}
	bookmarks := tree.Flatten(root)
	fmt.Printf("Wrote %d bookmarks to %s\n", len(bookmarks), outputPath)
}

// runStats prints the analytics snapshot.
func runStats(path string) {
	root := loadTree(path)
	result := analytics.Analyze(tree.Flatten(root), time.Now())

	fmt.Println(titleStyle.Render(fmt.Sprintf("%d bookmarks", result.TotalBookmarks)))

	if len(result.TopDomains) > 0 {
		fmt.Println(titleStyle.Render("\nTop domains"))
		for _, d := range result.TopDomains {
			fmt.Printf("  %4d  %s\n", d.Count, d.Domain)
		}
	}

	if len(result.TopKeywords) > 0 {
		fmt.Println(titleStyle.Render("\nTop keywords"))
		for _, k := range result.TopKeywords {
			fmt.Printf("  %4d  %s\n", k.Count, k.Keyword)
		}
	}

	if len(result.Years) > 0 {
		fmt.Println(titleStyle.Render("\nAdded per year"))
		for _, y := range result.Years {
			fmt.Printf("  %d  %d\n", y.Year, y.Count)
		}
	}

	if len(result.AgeBuckets) > 0 {
		fmt.Println(titleStyle.Render("\nAge"))
		for _, bucket := range result.AgeBuckets {
			fmt.Printf("  %4d  %s\n", bucket.Count, bucket.Label)
		}
	}
}

// probedDupes probes every duplicated URL and returns the unreachable
// set for Resolve.
func probedDupes(root *model.Folder) map[string]bool {
	config := loadConfig()
	prober := health.NewHTTPProber(time.Duration(config.ProbeTimeoutSeconds) * time.Second)
	return dedupe.ProbeDuplicateURLs(context.Background(), prober, root)
}

// runDups prints the duplicate report with the recommended partition.
func runDups(path string, probe bool) {
	root := loadTree(path)
	var unreachable map[string]bool
	if probe {
		unreachable = probedDupes(root)
	}
	rec := dedupe.Resolve(root, unreachable)

	if len(rec.Groups) == 0 {
		fmt.Println(goodStyle.Render("No duplicates found"))
		return
	}

	for _, group := range rec.Groups {
		fmt.Println(titleStyle.Render(group.URL))
		for i, c := range group.Candidates {
			marker := "remove"
			if i == 0 && !group.Unreachable {
				marker = "keep  "
			}
			fmt.Printf("  %s  %s  %s\n", marker, c.Bookmark.Title, pathStyle.Render(c.Path))
		}
	}
	fmt.Printf("\n%d duplicate groups, %d bookmarks recommended for removal\n",
		len(rec.Groups), len(rec.RemoveIDs))
}

// runDedupe applies the duplicate recommendation and writes the result.
func runDedupe(path, outputPath string, probe bool) {
	root := loadTree(path)
	var unreachable map[string]bool
	if probe {
		unreachable = probedDupes(root)
	}
	rec := dedupe.Resolve(root, unreachable)

	if len(rec.RemoveIDs) == 0 {
		fmt.Println(goodStyle.Render("No duplicates found, nothing to do"))
		return
	}

	cleaned := tree.RemoveByIDs(root, rec.RemoveIDs)
	cleaned = tree.AnnotateSearchIndex(cleaned)
	fmt.Printf("Removed %d duplicate bookmarks\n", len(rec.RemoveIDs))
	writeExport(cleaned, outputPath)
}

// runEmpty reports empty folders.
func runEmpty(path string) {
	root := loadTree(path)
	empties := tree.FindEmptyFolders(root)

	if len(empties) == 0 {
		fmt.Println(goodStyle.Render("No empty folders"))
		return
	}

	for _, info := range empties {
		location := info.Path
		if location == "" {
			location = "top level"
		}
		fmt.Printf("  %s  %s\n", info.Title, pathStyle.Render(location))
	}
	fmt.Printf("\n%d empty folders\n", len(empties))
}

// runPrune removes empty folders recursively and writes the result.
func runPrune(path, outputPath string) {
	root := loadTree(path)
	before := len(tree.FindEmptyFolders(root))
	if before == 0 {
		fmt.Println(goodStyle.Render("No empty folders, nothing to do"))
		return
	}

	cleaned := tree.RemoveEmptyFolders(root)
	fmt.Printf("Pruned empty folders (%d reported before cleanup)\n", before)
	writeExport(cleaned, outputPath)
}

// runAudit runs the two-stage health pipeline with live progress, then
// prints and archives the report.
func runAudit(path string) {
	root := loadTree(path)
	bookmarks := tree.Flatten(root)
	config := loadConfig()

	client, err := oracle.NewClient(config.OracleModel)
	if err != nil {
		fail("Error: %v", err)
	}

	program := tea.NewProgram(tui.New(fmt.Sprintf("Auditing %d bookmarks", len(bookmarks))))

	pipeline := health.NewPipeline(health.PipelineParams{
		Prober:     health.NewHTTPProber(time.Duration(config.ProbeTimeoutSeconds) * time.Second),
		Classifier: client,
		Logger:     newLogger(),
		OnProgress: func(p health.Progress) {
			program.Send(tui.ProgressMsg{
				Label:  p.Stage.String(),
				Done:   p.Checked,
				Total:  p.Total,
				Issues: p.Issues,
			})
		},
	})

	var report *health.Report
	go func() {
		var runErr error
		report, runErr = pipeline.Run(context.Background(), bookmarks)
		program.Send(tui.DoneMsg{Err: runErr})
	}()

	finalModel, err := program.Run()
	if err != nil {
		fail("Error running progress view: %v", err)
	}
	if runErr := finalModel.(tui.Model).Err(); runErr != nil {
		if errors.Is(runErr, oracle.ErrQuotaExceeded) {
			fail("Audit aborted: oracle quota exceeded. No further AI calls were made.")
		}
		fail("Audit failed: %v", runErr)
	}
	if report == nil {
		// Progress view quit before the pipeline finished.
		os.Exit(0)
	}

	health.ResolveIssuePaths(report, tree.BuildPathMap(root))
	printReport(report)
	archiveReport(report)
}

func printReport(report *health.Report) {
	if report.TotalIssues == 0 {
		fmt.Println(goodStyle.Render(fmt.Sprintf("All %d bookmarks healthy (score %d)",
			report.TotalChecked, report.HealthScore)))
		return
	}

	for _, issue := range report.Issues {
		fmt.Printf("  %s  %s\n", badStyle.Render(string(issue.Status)), issue.Bookmark.Title)
		fmt.Printf("          %s  %s\n", issue.Bookmark.URL, pathStyle.Render(issue.Path))
		if issue.NewURL != "" {
			fmt.Printf("          suggested: %s\n", issue.NewURL)
		}
		if issue.Detail != "" {
			fmt.Printf("          %s\n", pathStyle.Render(issue.Detail))
		}
	}
	fmt.Printf("\n%d checked, %d issues, health score %d\n",
		report.TotalChecked, report.TotalIssues, report.HealthScore)
}

func archiveReport(report *health.Report) {
	storePath, err := storage.DefaultStorePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not archive report: %v\n", err)
		return
	}
	store, err := storage.NewReportStore(storePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not archive report: %v\n", err)
		return
	}
	defer store.Close()

	runID, err := store.SaveReport(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not archive report: %v\n", err)
		return
	}
	fmt.Printf("Archived as run %d\n", runID)
}

// runFix builds and exports the full reorganization proposal.
func runFix(path, outputPath string) {
	root := loadTree(path)
	bookmarks := tree.Flatten(root)
	config := loadConfig()

	client, err := oracle.NewClient(config.OracleModel)
	if err != nil {
		fail("Error: %v", err)
	}

	program := tea.NewProgram(tui.New(fmt.Sprintf("Reorganizing %d bookmarks", len(bookmarks))))

	org := organizer.New(organizer.Params{
		Prober:      health.NewHTTPProber(time.Duration(config.ProbeTimeoutSeconds) * time.Second),
		Categorizer: client,
		Logger:      newLogger(),
		OnProgress: func(p organizer.Progress) {
			program.Send(tui.ProgressMsg{
				Label: p.Step.String(),
				Done:  p.Done,
				Total: p.Total,
			})
		},
	})

	var proposal *organizer.Proposal
	go func() {
		var runErr error
		proposal, runErr = org.Propose(context.Background(), root)
		program.Send(tui.DoneMsg{Err: runErr})
	}()

	finalModel, err := program.Run()
	if err != nil {
		fail("Error running progress view: %v", err)
	}
	if runErr := finalModel.(tui.Model).Err(); runErr != nil {
		if errors.Is(runErr, oracle.ErrQuotaExceeded) {
			fail("Reorganization aborted: oracle quota exceeded. No further AI calls were made.")
		}
		fail("Reorganization failed: %v", runErr)
	}
	if proposal == nil {
		os.Exit(0)
	}

	fmt.Printf("Removed %d duplicates and %d unreachable bookmarks\n",
		proposal.DuplicatesRemoved, proposal.UnreachableRemoved)
	fmt.Printf("Categorized %d bookmarks (%d in %s)\n",
		proposal.Categorized, proposal.Unassigned, "Miscellaneous")
	writeExport(tree.AnnotateSearchIndex(proposal.Tree), outputPath)
}

// runSearch fuzzy-searches the tree and copies the best match's URL.
func runSearch(path, query string) {
	root := tree.AnnotateSearchIndex(loadTree(path))
	results := search.FuzzySearch(root, query)

	if len(results) == 0 {
		fmt.Printf("No bookmarks found for '%s'\n", query)
		return
	}

	limit := min(len(results), 10)
	for _, result := range results[:limit] {
		fmt.Printf("  %s\n  %s\n", result.Bookmark.Title, pathStyle.Render(result.Bookmark.URL))
	}

	best := results[0].Bookmark
	if err := clipboard.WriteAll(best.URL); err == nil {
		fmt.Printf("\nCopied to clipboard: %s\n", best.URL)
	}
}

// runReports lists archived audit runs, or shows one run's issues.
func runReports(idArg string) {
	storePath, err := storage.DefaultStorePath()
	if err != nil {
		fail("Error: %v", err)
	}
	store, err := storage.NewReportStore(storePath)
	if err != nil {
		fail("Error opening audit archive: %v", err)
	}
	defer store.Close()

	if idArg == "" {
		runs, err := store.ListRuns()
		if err != nil {
			fail("Error listing runs: %v", err)
		}
		if len(runs) == 0 {
			fmt.Println("No archived audits")
			return
		}
		for _, run := range runs {
			fmt.Printf("  %4d  %s  %d checked, %d issues, score %d\n",
				run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04"),
				run.TotalChecked, run.TotalIssues, run.HealthScore)
		}
		return
	}

	runID, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fail("Invalid run id %q", idArg)
	}
	issues, err := store.Issues(runID)
	if err != nil {
		fail("Error loading run %d: %v", runID, err)
	}
	if len(issues) == 0 {
		fmt.Printf("Run %d has no issues\n", runID)
		return
	}
	for _, issue := range issues {
		fmt.Printf("  %s  %s\n", badStyle.Render(issue.Status), issue.Title)
		fmt.Printf("          %s  %s\n", issue.URL, pathStyle.Render(issue.Path))
		if issue.NewURL != "" {
			fmt.Printf("          suggested: %s\n", issue.NewURL)
		}
	}
}
