package commands

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wuttem/gotsdb/bucket"
	"github.com/wuttem/gotsdb/engine"
	"github.com/wuttem/gotsdb/log"
)

// patchSizes mirrors original_source/example_performance.py's
// PATCH_SIZES: the synthetic workload replays each patch size in turn
// against the configured backend and reports points/sec.
var patchSizes = []int{3, 10, 30, 50}

func loadgenCmd() *cobra.Command {
	var dataPoints int
	var sensor string

	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Replay a synthetic insert workload and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closer, err := buildEngine()
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx := cmd.Context()
			dayOffset := time.Now().Add(-365 * 24 * time.Hour).Unix()
			dayOffset -= dayOffset % (24 * 60 * 60)

			for _, patch := range patchSizes {
				key := keyFor(sensor, patch)
				start := time.Now()
				n, err := insertPatches(ctx, eng, key, uint32(dayOffset), dataPoints, patch)
				if err != nil {
					return err
				}
				elapsed := time.Since(start)
				log.Info("loadgen patch complete",
					"patch_size", patch, "points", n,
					"elapsed", elapsed, "points_per_sec", float64(n)/elapsed.Seconds())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&dataPoints, "points", 1000, "points to insert per patch size")
	cmd.Flags().StringVar(&sensor, "sensor", "loadgen", "synthetic sensor name used in the key")
	return cmd
}

func keyFor(sensor string, patch int) string {
	return sensor + ".phex." + strconv.Itoa(patch)
}

func insertPatches(ctx context.Context, eng *engine.Engine, key string, tsOffset uint32, dataPoints, patch int) (int, error) {
	inserted := 0
	for inserted < dataPoints {
		n := patch
		if inserted+n > dataPoints {
			n = dataPoints - inserted
		}
		points := make([]engine.Point, n)
		for x := 0; x < n; x++ {
			ts := tsOffset + uint32((inserted+x)*600)
			v := float32(20 + rand.Intn(6))
			points[x] = engine.Point{TS: ts, V: bucket.F32Value(v)}
		}
		if _, err := eng.Insert(ctx, key, points); err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}
