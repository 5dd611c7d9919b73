package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanalytics/insights-cli/internal/model"
	"github.com/urbanalytics/insights-cli/internal/regions"
)

// serviceDesertKm is the radius inside which every region centroid should
// see at least one service POI.
const serviceDesertKm = 2.0

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load statistical areas and build a metric snapshot",
	Long: `Load CBS statistical-area boundaries from a shapefile, enrich each region
with POI proximity and transit density derived from a POI inventory, merge
in tabular metrics (crime, education, housing, demographics), and persist
everything as an immutable snapshot.

Examples:
  # Full ingest from config-declared paths
  ingest

  # Override inputs and pin the snapshot ID
  ingest --shapefile data/stat_areas.shp --pois data/pois.csv \
    --metrics data/cbs_metrics.csv --snapshot 2026-07`,
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.String("shapefile", "", "statistical-area shapefile (overrides config)")
	f.String("pois", "", "POI inventory CSV (overrides config)")
	f.String("metrics", "", "tabular metrics CSV (overrides config)")
	f.String("snapshot", "", "snapshot ID (default: random UUID)")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if v, _ := cmd.Flags().GetString("shapefile"); v != "" {
		cfg.Ingest.ShapefilePath = v
	}
	if v, _ := cmd.Flags().GetString("pois"); v != "" {
		cfg.Ingest.POIPath = v
	}
	if v, _ := cmd.Flags().GetString("metrics"); v != "" {
		cfg.Ingest.MetricsPath = v
	}

	if err := cfg.Validate("ingest"); err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "ingest"))

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if err := st.Migrate(ctx); err != nil {
		return eris.Wrap(err, "ingest: migrate")
	}

	regs, err := regions.LoadShapefile(cfg.Ingest.ShapefilePath)
	if err != nil {
		return eris.Wrap(err, "ingest: load shapefile")
	}
	log.Info("regions loaded", zap.Int("count", len(regs)))

	upserted, err := st.UpsertRegions(ctx, regs)
	if err != nil {
		return eris.Wrap(err, "ingest: upsert regions")
	}
	log.Info("regions stored", zap.Int64("upserted", upserted))

	// Derived metrics from the POI inventory.
	var derived []model.RawMetricSet
	if cfg.Ingest.POIPath != "" {
		pois, err := regions.LoadPOIsCSV(cfg.Ingest.POIPath)
		if err != nil {
			return eris.Wrap(err, "ingest: load POIs")
		}
		log.Info("POIs loaded", zap.Int("count", len(pois)))

		enricher := regions.NewEnricher(pois)
		derived, err = enricher.Enrich(ctx, regs)
		if err != nil {
			return eris.Wrap(err, "ingest: enrich regions")
		}

		// Coverage check: a region with no service POI anywhere near its
		// centroid usually means the POI extract is missing its city.
		if deserts := serviceDeserts(enricher, regs, serviceDesertKm); len(deserts) > 0 {
			log.Warn("regions with no nearby service POI",
				zap.Float64("radius_km", serviceDesertKm),
				zap.Strings("region_ids", deserts))
		}
	}

	// Tabular metrics. CBS publishes both CSV and XLSX exports.
	var tabular []model.RawMetricSet
	if cfg.Ingest.MetricsPath != "" {
		if strings.HasSuffix(cfg.Ingest.MetricsPath, ".xlsx") {
			tabular, err = regions.LoadMetricsXLSX(cfg.Ingest.MetricsPath, regions.XLSXOptions{})
		} else {
			tabular, err = regions.LoadMetricsCSV(cfg.Ingest.MetricsPath)
		}
		if err != nil {
			return eris.Wrap(err, "ingest: load metrics")
		}
		log.Info("tabular metrics loaded", zap.Int("regions", len(tabular)))
	}

	merged := regions.MergeMetrics(tabular, derived)
	if len(merged) == 0 {
		return eris.New("ingest: no metrics produced; provide --pois or --metrics")
	}

	snapshotID, _ := cmd.Flags().GetString("snapshot")
	if snapshotID == "" {
		snapshotID = uuid.NewString()
	}

	if err := st.CreateSnapshot(ctx, model.Snapshot{ID: snapshotID, Metrics: merged}); err != nil {
		return eris.Wrapf(err, "ingest: create snapshot %s", snapshotID)
	}

	log.Info("snapshot created",
		zap.String("snapshot_id", snapshotID),
		zap.Int("regions", len(merged)),
	)
	fmt.Printf("Snapshot %s created with %d regions\n", snapshotID, len(merged))

	return nil
}

// serviceDeserts returns the IDs of regions whose centroid has no service
// POI within maxKm.
func serviceDeserts(e *regions.Enricher, regs []model.Region, maxKm float64) []string {
	var ids []string
	for _, r := range regs {
		dist, _, ok := e.NearestService(r.Centroid, maxKm)
		if !ok || dist > maxKm {
			ids = append(ids, r.ID)
		}
	}
	return ids
}
