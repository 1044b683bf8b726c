// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"testing"
	"time"
)

func TestHistogram(t *testing.T) {
	var h Histogram
	h.Add(10 * time.Millisecond)  // bucket 0
	h.Add(75 * time.Millisecond)  // bucket 1
	h.Add(120 * time.Millisecond) // bucket 2
	h.Add(time.Hour)              // clamped to the last bucket

	if h.Buckets[0] != 1 || h.Buckets[1] != 1 || h.Buckets[2] != 1 {
		t.Errorf("buckets = %v", h.Buckets[:3])
	}
	if h.Buckets[LatencyBuckets-1] != 1 {
		t.Errorf("overflow bucket = %d", h.Buckets[LatencyBuckets-1])
	}
	if h.Count != 4 {
		t.Errorf("count = %d", h.Count)
	}

	var other Histogram
	other.Add(80 * time.Millisecond)
	h.Merge(&other)
	if h.Buckets[1] != 2 || h.Count != 5 {
		t.Errorf("after merge: bucket1=%d count=%d", h.Buckets[1], h.Count)
	}
	h.Merge(nil)
	if h.Count != 5 {
		t.Error("nil merge changed counts")
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer[float64](ResolutionConfig{Name: "1m", Resolution: time.Minute, Buckets: 4})

	rb.Add(60, 1.0)
	rb.Add(125, 2.0) // aligns to 120
	rb.Add(180, 3.0)

	points := rb.GetPoints()
	if len(points) != 3 {
		t.Fatalf("points = %v", points)
	}
	if points[0].Timestamp != 60 || points[2].Timestamp != 180 {
		t.Errorf("point order = %v", points)
	}

	// Same aligned bucket updates in place.
	rb.Add(185, 4.0)
	points = rb.GetPoints()
	if len(points) != 3 || points[2].Value != 4.0 {
		t.Errorf("in-place update: %v", points)
	}

	// Wrapping overwrites the oldest entry.
	rb.Add(240, 5.0)
	rb.Add(300, 6.0)
	points = rb.GetPoints()
	if len(points) != 4 || points[0].Timestamp != 120 {
		t.Errorf("after wrap: %v", points)
	}
}

func TestMetricSeries_Ingest(t *testing.T) {
	t.Run("SumAccumulates", func(t *testing.T) {
		ms := NewMetricSeries("cluster:leaderGapMs", "Sum")
		ms.Ingest(600, 10)
		ms.Ingest(620, 5)

		points := ms.Buffers["1m"].GetPoints()
		if len(points) != 1 || points[0].Value != 15 {
			t.Errorf("sum points = %v", points)
		}
	})

	t.Run("AvgReplacesAtMinuteResolution", func(t *testing.T) {
		ms := NewMetricSeries("node:n1:rps", "Avg")
		ms.Ingest(600, 10)
		ms.Ingest(630, 20)

		points := ms.Buffers["1m"].GetPoints()
		if len(points) != 1 || points[0].Value != 20 {
			t.Errorf("1m points = %v", points)
		}
	})

	t.Run("AvgRunsWithinCoarseBucket", func(t *testing.T) {
		ms := NewMetricSeries("node:n1:rps", "Avg")
		// Two samples one minute apart land in the same 15m bucket.
		ms.Ingest(900, 10)
		ms.Ingest(960, 20)

		points := ms.Buffers["15m"].GetPoints()
		if len(points) != 1 || points[0].Value != 15 {
			t.Errorf("15m points = %v", points)
		}
	})
}

func TestHistogramSeries_Ingest(t *testing.T) {
	hs := NewHistogramSeries("node:n1:latency")

	var h1, h2 Histogram
	h1.Add(20 * time.Millisecond)
	h2.Add(30 * time.Millisecond)

	hs.Ingest(600, &h1)
	hs.Ingest(630, &h2) // same 1m bucket, merged

	points := hs.Buffers["1m"].GetPoints()
	if len(points) != 1 {
		t.Fatalf("points = %v", points)
	}
	if points[0].Value.Count != 2 || points[0].Value.Buckets[0] != 2 {
		t.Errorf("merged histogram = %+v", points[0].Value)
	}

	hs.Ingest(700, nil) // ignored
	if len(hs.Buffers["1m"].GetPoints()) != 1 {
		t.Error("nil ingest added a point")
	}
}

func TestMetricsStore(t *testing.T) {
	s := NewMetricsStore()

	if agg := s.GetClusterSeries("leaderGapMs").AggregationType; agg != "Sum" {
		t.Errorf("leaderGapMs aggType = %q", agg)
	}
	if agg := s.GetClusterSeries("nodeCount").AggregationType; agg != "Avg" {
		t.Errorf("nodeCount aggType = %q", agg)
	}
	if s.GetNodeSeries("n1") != s.GetNodeSeries("n1") {
		t.Error("GetNodeSeries not stable")
	}

	out := s.ToJSON()
	for _, key := range []string{"nodes", "latencies", "cluster", "lastUpdate"} {
		if _, ok := out[key]; !ok {
			t.Errorf("ToJSON missing %q", key)
		}
	}
}

func TestMetricsStore_Hydrate(t *testing.T) {
	// A store decoded from JSON may carry series with missing buffers.
	s := &MetricsStore{
		NodeMetrics: map[string]*MetricSeries{
			"n1": {Name: "node:n1:rps", AggregationType: "Avg"},
		},
	}
	s.Hydrate()

	if s.ClusterMetrics == nil || s.NodeLatencies == nil {
		t.Error("maps not initialized")
	}
	for _, cfg := range DefaultResolutions {
		if s.NodeMetrics["n1"].Buffers[cfg.Name] == nil {
			t.Errorf("missing %s buffer after Hydrate", cfg.Name)
		}
	}
}
