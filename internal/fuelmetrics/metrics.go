package fuelmetrics

import (
	"fmt"
	"math"
	"time"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/logger"
)

// 本包只做展示层的派生计算：所有值都从已持久化的原始读数现算，
// 不落库，避免冗余字段漂移。

// Calculator 燃油指标计算器。无状态，只持有日志（记录里程倒挂等异常读数）。
type Calculator struct {
	log logger.Logger
}

func NewCalculator(log logger.Logger) *Calculator {
	return &Calculator{log: log}
}

// MileageDelta 行驶里程差 = max(0, actual - anterior)。
// 倒挂（actual < anterior）按“未知”处理：记 warn 日志并返回 0，不报错。
func (c *Calculator) MileageDelta(current, previous float64) float64 {
	if current < previous {
		if c != nil && c.log != nil {
			c.log.WithFields(map[string]interface{}{
				"kilometraje_actual":   current,
				"kilometraje_anterior": previous,
			}).Warn("odometer inversion detected, reporting delta as 0")
		}
		return 0
	}
	return current - previous
}

// Efficiency 燃油效率 = 里程差 / 加注量，保留 2 位小数。
// 任一输入不为正时返回 0。
func (c *Calculator) Efficiency(mileageDelta, quantity float64) float64 {
	if mileageDelta <= 0 || quantity <= 0 {
		return 0
	}
	return round2(mileageDelta / quantity)
}

// TankFillPercent 油箱加注占比 = 加注量 / 油箱容量 * 100，保留 2 位小数。
// 容量缺失或为 0 时返回 0。
func (c *Calculator) TankFillPercent(quantity, tankCapacity float64) float64 {
	if quantity <= 0 || tankCapacity <= 0 {
		return 0
	}
	return round2(quantity / tankCapacity * 100)
}

// ShiftDurationHours 班次时长（小时，2 位小数）。
// 结束早于开始视为跨夜班（如 22:00 -> 06:00），补 24 小时后再算。
func ShiftDurationHours(startTime, endTime string) (float64, error) {
	start, err := parseClock(startTime)
	if err != nil {
		return 0, err
	}
	end, err := parseClock(endTime)
	if err != nil {
		return 0, err
	}

	d := end.Sub(start)
	if d < 0 {
		d += 24 * time.Hour
	}
	return round2(d.Hours()), nil
}

func parseClock(s string) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock value %q (want HH:MM): %w", s, err)
	}
	return t, nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
