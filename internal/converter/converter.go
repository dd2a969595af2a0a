// Package converter 输液滴速/流量/时长换算（纯函数，无状态）
package converter

import (
	"fmt"
	"math"
	"time"
)

// DropsPerMinuteToVolumePerHour 滴速（drops/min）换算为流量（mL/hr）
// 任一输入 <= 0 时返回 0
func DropsPerMinuteToVolumePerHour(drops, dropFactor float64) float64 {
	if !positive(drops) || !positive(dropFactor) {
		return 0
	}
	return drops * 60 / dropFactor
}

// VolumePerHourToDropsPerMinute 流量（mL/hr）换算为滴速（drops/min）
func VolumePerHourToDropsPerMinute(volumePerHour, dropFactor float64) float64 {
	if !positive(volumePerHour) || !positive(dropFactor) {
		return 0
	}
	return volumePerHour * dropFactor / 60
}

// TimeToEmptyHours 剩余液量按当前流量输完所需小时数
func TimeToEmptyHours(totalVolume, volumePerHour float64) float64 {
	if !positive(totalVolume) || !positive(volumePerHour) {
		return 0
	}
	return totalVolume / volumePerHour
}

// QuickDropEstimate 床旁快速估算滴速（近似值，非精确换算）
// 10 → /6，15 → /4，20 → /3，60 → 原值；其他滴系数退回精确换算
func QuickDropEstimate(volumePerHour float64, dropFactor int) float64 {
	switch dropFactor {
	case 10:
		return math.Round(volumePerHour / 6)
	case 15:
		return math.Round(volumePerHour / 4)
	case 20:
		return math.Round(volumePerHour / 3)
	case 60:
		return math.Round(volumePerHour)
	default:
		return VolumePerHourToDropsPerMinute(volumePerHour, float64(dropFactor))
	}
}

// IsStandardDropFactor 是否为常用滴系数
func IsStandardDropFactor(dropFactor int) bool {
	switch dropFactor {
	case 10, 15, 20, 60:
		return true
	}
	return false
}

// FormatDuration 格式化为 "<h> hr <m> min"
func FormatDuration(hours float64) string {
	if !positive(hours) || math.IsInf(hours, 0) {
		return "0 hr 0 min"
	}
	whole := math.Floor(hours)
	minutes := math.Round((hours - whole) * 60)
	if minutes == 60 {
		whole++
		minutes = 0
	}
	return fmt.Sprintf("%d hr %d min", int64(whole), int64(minutes))
}

// EstimatedFinish 预计输完时间；hours <= 0 时返回零值
func EstimatedFinish(now time.Time, hours float64) time.Time {
	if !positive(hours) || math.IsInf(hours, 0) {
		return time.Time{}
	}
	return now.Add(time.Duration(hours * float64(time.Hour)))
}

// positive NaN 视为无效
func positive(v float64) bool {
	return v > 0 && !math.IsNaN(v)
}
