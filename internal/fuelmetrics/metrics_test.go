package fuelmetrics

import "testing"

func TestMileageDelta(t *testing.T) {
	c := NewCalculator(nil)

	if got := c.MileageDelta(300, 100); got != 200 {
		t.Fatalf("expected delta 200, got %v", got)
	}
	// 倒挂按未知处理，返回 0 而不是负数
	if got := c.MileageDelta(100, 200); got != 0 {
		t.Fatalf("expected inversion to report 0, got %v", got)
	}
	if got := c.MileageDelta(0, 0); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestEfficiency(t *testing.T) {
	c := NewCalculator(nil)

	if got := c.Efficiency(200, 25.5); got != 7.84 {
		t.Fatalf("expected 7.84, got %v", got)
	}
	if got := c.Efficiency(0, 25.5); got != 0 {
		t.Fatalf("expected 0 for zero delta, got %v", got)
	}
	if got := c.Efficiency(200, 0); got != 0 {
		t.Fatalf("expected 0 for zero quantity, got %v", got)
	}
}

func TestTankFillPercent(t *testing.T) {
	c := NewCalculator(nil)

	if got := c.TankFillPercent(25.5, 400); got != 6.38 {
		t.Fatalf("expected 6.38, got %v", got)
	}
	if got := c.TankFillPercent(25.5, 0); got != 0 {
		t.Fatalf("expected 0 for missing capacity, got %v", got)
	}
}

func TestShiftDurationHours(t *testing.T) {
	got, err := ShiftDurationHours("06:00", "14:00")
	if err != nil {
		t.Fatalf("ShiftDurationHours: %v", err)
	}
	if got != 8.0 {
		t.Fatalf("expected 8.0, got %v", got)
	}

	// 跨夜班：22:00 -> 06:00 应为 8 小时
	got, err = ShiftDurationHours("22:00", "06:00")
	if err != nil {
		t.Fatalf("ShiftDurationHours overnight: %v", err)
	}
	if got != 8.0 {
		t.Fatalf("expected overnight 8.0, got %v", got)
	}

	got, err = ShiftDurationHours("07:30", "12:15")
	if err != nil {
		t.Fatalf("ShiftDurationHours: %v", err)
	}
	if got != 4.75 {
		t.Fatalf("expected 4.75, got %v", got)
	}

	if _, err := ShiftDurationHours("7am", "12:00"); err == nil {
		t.Fatalf("expected error for malformed clock value")
	}
}
