package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/urbanalytics/insights-cli/internal/model"
	"github.com/urbanalytics/insights-cli/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute composite livability scores for a snapshot",
	Long: `Compute weighted composite scores for every region in a metric snapshot.

Each component (education, crime, services, transit, housing, demographics)
is standardized against the snapshot population, sign-oriented so higher is
better, and combined into a 0-100 integer score. Missing values are imputed
as neutral; regions that cannot be scored are reported without blocking the
batch.

Examples:
  # Score the latest snapshot and print a table
  score

  # Score a specific snapshot with a custom weights profile
  score --snapshot 2026-07 --weights family.yaml

  # Export to CSV or XLSX
  score --format csv --output scores.csv
  score --format xlsx --output scores.xlsx

  # Persist scores back to the store
  score --save`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("snapshot", "", "snapshot ID to score (default: latest)")
	f.String("weights", "", "YAML weights profile (default: built-in weights)")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table, csv or xlsx")
	f.Bool("save", false, "persist scores to the store")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("score"); err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "score"))

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	save, _ := cmd.Flags().GetBool("save")

	if format != "table" && format != "csv" && format != "xlsx" {
		return eris.Errorf("score: --format must be table, csv or xlsx (got %q)", format)
	}
	if format == "xlsx" && outputPath == "" {
		return eris.New("score: --format xlsx requires --output")
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	weights, err := loadWeights(cmd)
	if err != nil {
		return err
	}

	snapshotID, _ := cmd.Flags().GetString("snapshot")
	if snapshotID == "" {
		snapshotID, err = st.LatestSnapshotID(ctx)
		if err != nil {
			return eris.Wrap(err, "score: resolve latest snapshot")
		}
	}

	log.Info("scoring snapshot",
		zap.String("snapshot_id", snapshotID),
	)

	engine := scoring.NewEngine(st, weights)
	result, err := engine.ComputeCompositeScores(ctx, snapshotID)
	if err != nil {
		return eris.Wrapf(err, "score: snapshot %s", snapshotID)
	}

	log.Info("scoring complete",
		zap.Int("scored", len(result.Scores)),
		zap.Int("failed", len(result.Failed)),
	)
	for _, f := range result.Failed {
		log.Warn("region not scored",
			zap.String("region_id", f.RegionID),
			zap.String("reason", f.Reason),
		)
	}

	if err := outputScores(result.Scores, format, outputPath); err != nil {
		return err
	}

	if save && len(result.Scores) > 0 {
		if err := st.SaveScores(ctx, snapshotID, result.Scores); err != nil {
			return eris.Wrap(err, "score: save")
		}
		fmt.Printf("Saved %d scores for snapshot %s\n", len(result.Scores), snapshotID)
	}

	printScoreSummary(result.Scores)

	return nil
}

func loadWeights(cmd *cobra.Command) (model.Weights, error) {
	profile, _ := cmd.Flags().GetString("weights")
	if profile == "" {
		profile = cfg.Scoring.WeightsProfile
	}
	if profile == "" {
		return scoring.DefaultWeights(), nil
	}
	return scoring.LoadWeightsProfile(profile)
}

func printScoreSummary(scores []model.CompositeScore) {
	if len(scores) == 0 {
		fmt.Println("No results.")
		return
	}
	var sum int
	minScore, maxScore := 101, -1
	for _, s := range scores {
		sum += s.Score
		if s.Score > maxScore {
			maxScore = s.Score
		}
		if s.Score < minScore {
			minScore = s.Score
		}
	}
	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Regions scored: %d\n", len(scores))
	fmt.Printf("Score range:    %d - %d\n", minScore, maxScore)
	fmt.Printf("Average score:  %.1f\n", float64(sum)/float64(len(scores)))
}

func outputScores(scores []model.CompositeScore, format, outputPath string) error {
	if format == "xlsx" {
		return writeScoreXLSX(outputPath, scores)
	}

	var w *os.File
	if outputPath != "" {
		var err error
		w, err = os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "score: create output file %s", outputPath)
		}
		defer w.Close() //nolint:errcheck
	} else {
		w = os.Stdout
	}

	switch format {
	case "csv":
		return writeScoreCSV(w, scores)
	default:
		return writeScoreTable(w, scores)
	}
}

func scoreHeader() []string {
	header := []string{"region_id", "score"}
	for _, c := range model.Components {
		header = append(header, string(c))
	}
	return header
}

func writeScoreCSV(w *os.File, scores []model.CompositeScore) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(scoreHeader()); err != nil {
		return eris.Wrap(err, "score: write CSV header")
	}

	for _, s := range scores {
		row := []string{s.RegionID, fmt.Sprintf("%d", s.Score)}
		for _, c := range model.Components {
			row = append(row, fmt.Sprintf("%.3f", s.Contributions[c]))
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "score: write CSV row")
		}
	}
	return nil
}

func writeScoreXLSX(path string, scores []model.CompositeScore) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("scores")
	if err != nil {
		return eris.Wrap(err, "score: add sheet")
	}

	hr := sheet.AddRow()
	for _, h := range scoreHeader() {
		hr.AddCell().SetString(h)
	}

	for _, s := range scores {
		row := sheet.AddRow()
		row.AddCell().SetString(s.RegionID)
		row.AddCell().SetInt(s.Score)
		for _, c := range model.Components {
			row.AddCell().SetFloat(s.Contributions[c])
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "score: save xlsx %s", path)
	}
	return nil
}

func writeScoreTable(w *os.File, scores []model.CompositeScore) error {
	header := fmt.Sprintf("%-14s %5s  %s\n", "Region", "Score", "Top contributions")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "score: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 70)); err != nil {
		return eris.Wrap(err, "score: write table separator")
	}

	for _, s := range scores {
		if _, err := fmt.Fprintf(w, "%-14s %5d  %s\n", s.RegionID, s.Score, topContributions(s)); err != nil {
			return eris.Wrap(err, "score: write table row")
		}
	}
	return nil
}

// topContributions renders the two largest-magnitude component
// contributions, signed, for quick scanning.
func topContributions(s model.CompositeScore) string {
	ordered := make([]model.Component, len(model.Components))
	copy(ordered, model.Components)
	sort.SliceStable(ordered, func(i, j int) bool {
		return math.Abs(s.Contributions[ordered[i]]) > math.Abs(s.Contributions[ordered[j]])
	})

	n := 2
	if len(ordered) < n {
		n = len(ordered)
	}
	parts := make([]string, 0, n)
	for _, c := range ordered[:n] {
		parts = append(parts, fmt.Sprintf("%s %+.2f", c, s.Contributions[c]))
	}
	return strings.Join(parts, ", ")
}
