package analysis

import "testing"

func TestAttackerSuccessProbabilityMajorityAlwaysWins(t *testing.T) {
	if p := AttackerSuccessProbability(0.5, 5); p != 1.0 {
		t.Fatalf("q=0.5 should always succeed eventually, got %f", p)
	}
	if p := AttackerSuccessProbability(0.6, 10); p != 1.0 {
		t.Fatalf("q>0.5 should always succeed eventually, got %f", p)
	}
}

func TestAttackerSuccessProbabilityZeroConfirmations(t *testing.T) {
	if p := AttackerSuccessProbability(0.1, 0); p != 1.0 {
		t.Fatalf("z=0 should always succeed, got %f", p)
	}
}

func TestAttackerSuccessProbabilityDecreasesWithConfirmations(t *testing.T) {
	q := 0.3
	prev := AttackerSuccessProbability(q, 1)
	for z := 2; z <= 10; z++ {
		cur := AttackerSuccessProbability(q, z)
		if cur > prev+1e-9 {
			t.Fatalf("expected probability to be non-increasing in z, z=%d prev=%f cur=%f", z, prev, cur)
		}
		prev = cur
	}
}

func TestAttackerSuccessProbabilityWithinUnitInterval(t *testing.T) {
	for _, q := range []float64{0.05, 0.1, 0.2, 0.3, 0.45} {
		for z := 0; z <= 20; z++ {
			p := AttackerSuccessProbability(q, z)
			if p < 0 || p > 1.0001 {
				t.Fatalf("probability out of range for q=%f z=%d: %f", q, z, p)
			}
		}
	}
}

func TestRequiredConfirmationsMeetsTarget(t *testing.T) {
	q := 0.1
	target := 0.001
	z, found := RequiredConfirmations(q, target)
	if !found {
		t.Fatalf("expected a confirmation count to satisfy target %f for q=%f", target, q)
	}
	if p := AttackerSuccessProbability(q, z); p > target {
		t.Fatalf("z=%d does not actually satisfy target: p=%f > target=%f", z, p, target)
	}
	if z > 0 {
		if p := AttackerSuccessProbability(q, z-1); p <= target {
			t.Fatalf("z=%d is not minimal: z-1 already satisfies target (p=%f)", z, p)
		}
	}
}

func TestRequiredConfirmationsUnreachableForMajorityAttacker(t *testing.T) {
	_, found := RequiredConfirmations(0.6, 0.0001)
	if found {
		t.Fatalf("a majority attacker should never satisfy a sub-1.0 target")
	}
}

func TestGenerateWhitepaperComparisonReportShape(t *testing.T) {
	qs := []float64{0.1, 0.3}
	confs := []int{1, 5, 10}
	report := GenerateWhitepaperComparisonReport(qs, confs)
	if len(report.Probabilities) != len(qs) {
		t.Fatalf("expected %d rows, got %d", len(qs), len(report.Probabilities))
	}
	for i, row := range report.Probabilities {
		if len(row) != len(confs) {
			t.Fatalf("row %d: expected %d columns, got %d", i, len(confs), len(row))
		}
	}
}

func TestCompareWithSimulationDifference(t *testing.T) {
	cmp := CompareWithSimulation(0.1, 6, 0.05)
	want := cmp.TheoreticalProbability - 0.05
	if want < 0 {
		want = -want
	}
	if cmp.AbsoluteDifference != want {
		t.Fatalf("absolute difference mismatch: got %f want %f", cmp.AbsoluteDifference, want)
	}
}

func TestMetricsCollectorSuccessRate(t *testing.T) {
	m := NewMetricsCollector(0.1, 6)
	if m.SuccessRate() != 0 {
		t.Fatalf("expected zero success rate with no attacks recorded")
	}
	m.RecordAttackStart()
	m.RecordAttackStart()
	m.RecordAttackSuccess()
	if got := m.SuccessRate(); got != 0.5 {
		t.Fatalf("expected success rate 0.5, got %f", got)
	}
}

func TestMetricsCollectorSummaryReport(t *testing.T) {
	m := NewMetricsCollector(0.2, 4)
	m.RecordAttackStart()
	m.RecordAttackSuccess()
	m.RecordHiddenBlockMined()
	m.RecordHiddenBlockMined()
	m.RecordPublicBlockMined()

	summary := m.GenerateSummaryReport()
	if summary.AttacksStarted != 1 || summary.AttacksSucceeded != 1 {
		t.Fatalf("unexpected summary counts: %+v", summary)
	}
	if summary.HiddenBlocksMined != 2 {
		t.Fatalf("expected 2 hidden blocks, got %d", summary.HiddenBlocksMined)
	}
	if summary.SuccessRate != 1.0 {
		t.Fatalf("expected success rate 1.0, got %f", summary.SuccessRate)
	}
}
