package anomaly

import "testing"

func TestForestFlagsObviousOutlier(t *testing.T) {
	points := [][]float64{
		{10, 1}, {12, 1}, {11, 2}, {9, 1}, {10, 2}, {11, 1}, {12, 2}, {500, 1},
	}
	f := New(Config{Trees: 100, Seed: 42, Contamination: 0.25})
	f.Fit(points)

	scores := f.Scores(points)
	labels := f.Predict(points)

	outlier := len(points) - 1
	for i, s := range scores {
		if i != outlier && s < scores[outlier] {
			t.Fatalf("point %d scored below the outlier: %v vs %v", i, s, scores[outlier])
		}
	}
	if labels[outlier] != -1 {
		t.Fatalf("outlier not flagged, scores=%v labels=%v", scores, labels)
	}
}

func TestForestDeterministicForSeed(t *testing.T) {
	points := [][]float64{{1, 1}, {2, 1}, {3, 2}, {100, 1}, {2, 2}}

	a := New(Config{Trees: 50, Seed: 42})
	a.Fit(points)
	b := New(Config{Trees: 50, Seed: 42})
	b.Fit(points)

	sa, sb := a.Scores(points), b.Scores(points)
	for i := range sa {
		if sa[i] != sb[i] {
			t.Fatalf("score %d differs across runs: %v vs %v", i, sa[i], sb[i])
		}
	}
}

func TestForestIdenticalPoints(t *testing.T) {
	points := [][]float64{{5, 2}, {5, 2}, {5, 2}, {5, 2}}
	f := New(Config{Trees: 20, Seed: 1})
	f.Fit(points)

	for i, label := range f.Predict(points) {
		if label != 1 {
			t.Fatalf("identical point %d flagged as anomaly", i)
		}
	}
	for i, s := range f.Scores(points) {
		if s != 0 {
			t.Fatalf("identical point %d has nonzero decision score %v", i, s)
		}
	}
}

func TestForestTooFewPoints(t *testing.T) {
	f := New(Config{Trees: 20, Seed: 1})
	f.Fit([][]float64{{3, 1}})

	scores := f.Scores([][]float64{{3, 1}})
	if scores[0] != 0 {
		t.Fatalf("unfitted forest should score zero, got %v", scores[0])
	}
	if f.Predict([][]float64{{3, 1}})[0] != 1 {
		t.Fatalf("unfitted forest should predict normal")
	}
}

func TestAvgPathLength(t *testing.T) {
	if avgPathLength(1) != 0 || avgPathLength(0) != 0 {
		t.Fatalf("c(n) must be zero below two nodes")
	}
	if got := avgPathLength(2); got != 1 {
		t.Fatalf("c(2) = %v, want 1", got)
	}
	if avgPathLength(256) <= avgPathLength(16) {
		t.Fatalf("c(n) must grow with n")
	}
}
