package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanalytics/insights-cli/internal/model"
)

var commuteCmd = &cobra.Command{
	Use:   "commute",
	Short: "Estimate commute times through the routing funnel",
	Long: `Estimate travel times from one origin to many destinations.

Destinations beyond geometric reach of the time threshold are discarded
before any routing provider is consulted; the rest are estimated in one
bulk matrix call, and a small candidate set may be refined with the
traffic-aware metered provider. Precise refinement degrades gracefully:
if the metered provider is down, bulk figures are returned as-is.

Examples:
  # Drive-time from Ramat Gan to two destinations, 45-minute threshold
  commute --origin 32.0684,34.8248 --dest 32.0853,34.7818 \
    --dest 31.7683,35.2137 --max-minutes 45

  # Transit at a specific departure
  commute --origin 32.0684,34.8248 --dest 32.0853,34.7818 \
    --mode transit --departure 2026-09-01T08:00:00+03:00

  # Force the metered provider
  commute --origin 32.0684,34.8248 --dest 32.0853,34.7818 --high-precision`,
	RunE: runCommute,
}

func init() {
	f := commuteCmd.Flags()
	f.String("origin", "", "origin as lat,lon (required)")
	f.String("origin-region", "", "origin region ID, for cache identity")
	f.StringArray("dest", nil, "destination as lat,lon (repeatable, required)")
	f.String("mode", "driving", "transport mode: driving, transit, walking or cycling")
	f.Int("max-minutes", 0, "commute-time threshold in minutes (0 disables the prefilter)")
	f.String("departure", "", "departure time, RFC 3339 (default: now)")
	f.Bool("high-precision", false, "request traffic-aware precise estimates")

	_ = commuteCmd.MarkFlagRequired("origin")
	_ = commuteCmd.MarkFlagRequired("dest")

	rootCmd.AddCommand(commuteCmd)
}

func runCommute(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("commute"); err != nil {
		return err
	}

	query, err := buildRouteQuery(cmd)
	if err != nil {
		return err
	}

	funnel, _, err := initFunnel()
	if err != nil {
		return err
	}

	zap.L().Info("estimating commutes",
		zap.String("mode", string(query.Mode)),
		zap.Int("destinations", len(query.Destinations)),
		zap.Duration("max_duration", query.MaxDuration),
	)

	result, err := funnel.Estimate(ctx, query)
	if err != nil {
		return eris.Wrap(err, "commute: estimate")
	}

	if result.Degraded {
		fmt.Println("Note: precise refinement unavailable; showing bulk estimates.")
	}
	printEstimates(result.Estimates)

	return nil
}

func buildRouteQuery(cmd *cobra.Command) (model.RouteQuery, error) {
	var query model.RouteQuery

	originStr, _ := cmd.Flags().GetString("origin")
	origin, err := parsePoint(originStr)
	if err != nil {
		return query, eris.Wrap(err, "commute: --origin")
	}

	destStrs, _ := cmd.Flags().GetStringArray("dest")
	dests := make([]model.Point, 0, len(destStrs))
	for _, d := range destStrs {
		p, err := parsePoint(d)
		if err != nil {
			return query, eris.Wrapf(err, "commute: --dest %q", d)
		}
		dests = append(dests, p)
	}

	modeStr, _ := cmd.Flags().GetString("mode")
	mode := model.Mode(modeStr)
	if !model.ValidMode(mode) {
		return query, eris.Errorf("commute: unsupported mode %q", modeStr)
	}

	var departure time.Time
	if depStr, _ := cmd.Flags().GetString("departure"); depStr != "" {
		departure, err = time.Parse(time.RFC3339, depStr)
		if err != nil {
			return query, eris.Wrap(err, "commute: --departure")
		}
	}

	maxMinutes, _ := cmd.Flags().GetInt("max-minutes")
	highPrecision, _ := cmd.Flags().GetBool("high-precision")
	originRegion, _ := cmd.Flags().GetString("origin-region")

	return model.RouteQuery{
		Origin:         origin,
		OriginRegionID: originRegion,
		Destinations:   dests,
		Mode:           mode,
		Departure:      departure,
		MaxDuration:    time.Duration(maxMinutes) * time.Minute,
		HighPrecision:  highPrecision,
	}, nil
}

func parsePoint(s string) (model.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return model.Point{}, eris.Errorf("expected lat,lon (got %q)", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.Point{}, eris.Wrap(err, "parse latitude")
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.Point{}, eris.Wrap(err, "parse longitude")
	}
	return model.Point{Lat: lat, Lon: lon}, nil
}

func printEstimates(estimates []model.RouteEstimate) {
	fmt.Printf("%-24s %10s %10s %-10s %-8s\n",
		"Destination", "Minutes", "Km", "Source", "Conf")
	fmt.Println(strings.Repeat("-", 68))

	for _, e := range estimates {
		dest := fmt.Sprintf("%.4f,%.4f", e.Destination.Lat, e.Destination.Lon)
		if e.Unreachable {
			fmt.Printf("%-24s %10s %10s %-10s %-8s\n",
				dest, "-", "-", e.Provenance, e.Confidence)
			continue
		}
		fmt.Printf("%-24s %10.1f %10.1f %-10s %-8s\n",
			dest, e.DurationSeconds/60, e.DistanceMeters/1000, e.Provenance, e.Confidence)
	}
}
