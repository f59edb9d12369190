package models

import "time"

type QualitySample struct {
	Timestamp         time.Time `json:"timestamp"`
	RTTMs             float64   `json:"rtt_ms" validate:"gte=0"`
	PacketLossPercent float64   `json:"packet_loss_percent" validate:"gte=0,lte=100"`
	BitrateBps        float64   `json:"bitrate_bps" validate:"gte=0"`
	FrameRate         float64   `json:"frame_rate" validate:"gte=0"`
	Resolution        string    `json:"resolution"`
}

type QualityStats struct {
	SampleCount          int     `json:"sample_count"`
	AvgRTTMs             float64 `json:"avg_rtt_ms"`
	AvgPacketLossPercent float64 `json:"avg_packet_loss_percent"`
	AvgBitrateBps        float64 `json:"avg_bitrate_bps"`
	AvgFrameRate         float64 `json:"avg_frame_rate"`
}

type QualityReport struct {
	SessionID               string       `json:"session_id"`
	AverageStats            QualityStats `json:"average_stats"`
	StableQualityPercentage float64      `json:"stable_quality_percentage"`
	Score                   int          `json:"score"`
	Issues                  []string     `json:"issues"`
}
