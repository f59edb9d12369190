package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Kamalbura/lms-sub001/internal/models"
)

// Thresholds a sample must meet to count as stable.
const (
	stableMaxRTTMs      = 300
	stableMaxPacketLoss = 5
	stableMinBitrateBps = 750000
)

// QualityAverages is the arithmetic mean of every sample, recomputed from the
// full list each time.
func QualityAverages(samples []models.QualitySample) models.QualityStats {
	stats := models.QualityStats{SampleCount: len(samples)}
	if len(samples) == 0 {
		return stats
	}

	for _, s := range samples {
		stats.AvgRTTMs += s.RTTMs
		stats.AvgPacketLossPercent += s.PacketLossPercent
		stats.AvgBitrateBps += s.BitrateBps
		stats.AvgFrameRate += s.FrameRate
	}
	n := float64(len(samples))
	stats.AvgRTTMs /= n
	stats.AvgPacketLossPercent /= n
	stats.AvgBitrateBps /= n
	stats.AvgFrameRate /= n
	return stats
}

// StablePercentage is the share of samples meeting every stability threshold.
// With no samples nothing was unstable, so it reports 100.
func StablePercentage(samples []models.QualitySample) float64 {
	if len(samples) == 0 {
		return 100
	}
	stable := 0
	for _, s := range samples {
		if s.RTTMs < stableMaxRTTMs && s.PacketLossPercent < stableMaxPacketLoss && s.BitrateBps > stableMinBitrateBps {
			stable++
		}
	}
	return float64(stable) * 100 / float64(len(samples))
}

// QualityScore rates a session 0-100 by subtracting an independent penalty per
// dimension. It is a product heuristic, not a measurement.
func QualityScore(avg models.QualityStats, stable float64) int {
	if avg.SampleCount == 0 {
		return 100
	}

	score := 100
	switch {
	case avg.AvgRTTMs > 500:
		score -= 30
	case avg.AvgRTTMs > 300:
		score -= 20
	case avg.AvgRTTMs > 150:
		score -= 10
	}
	switch {
	case avg.AvgPacketLossPercent > 10:
		score -= 40
	case avg.AvgPacketLossPercent > 5:
		score -= 25
	case avg.AvgPacketLossPercent > 2:
		score -= 10
	}
	switch {
	case avg.AvgBitrateBps < 250000:
		score -= 20
	case avg.AvgBitrateBps < 750000:
		score -= 10
	case avg.AvgBitrateBps < 1500000:
		score -= 5
	}
	switch {
	case stable < 70:
		score -= 10
	case stable < 85:
		score -= 5
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func qualityIssues(avg models.QualityStats, stable float64) []string {
	issues := []string{}
	if avg.SampleCount == 0 {
		return issues
	}
	if avg.AvgRTTMs > 300 {
		issues = append(issues, "high latency")
	}
	if avg.AvgPacketLossPercent > 5 {
		issues = append(issues, "packet loss")
	}
	if avg.AvgBitrateBps < 750000 {
		issues = append(issues, "low bitrate")
	}
	if stable < 85 {
		issues = append(issues, "unstable connection")
	}
	return issues
}

// BuildQualityReport always derives every figure from the full sample history.
func BuildQualityReport(s *models.OfficeHourSession) *models.QualityReport {
	avg := QualityAverages(s.Analytics.QualitySamples)
	stable := StablePercentage(s.Analytics.QualitySamples)
	return &models.QualityReport{
		SessionID:               s.ID.String(),
		AverageStats:            avg,
		StableQualityPercentage: stable,
		Score:                   QualityScore(avg, stable),
		Issues:                  qualityIssues(avg, stable),
	}
}

func IngestQualitySample(s *models.OfficeHourSession, actor uuid.UUID, sample models.QualitySample, now time.Time) ([]Effect, error) {
	if err := requireParticipant(s, actor); err != nil {
		return nil, err
	}
	if err := requireStatus(s, "record quality for", models.OfficeHourInProgress); err != nil {
		return nil, err
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}

	s.Analytics.QualitySamples = append(s.Analytics.QualitySamples, sample)
	s.Analytics.AverageStats = QualityAverages(s.Analytics.QualitySamples)
	return nil, nil
}

func FinalizeSessionQuality(s *models.OfficeHourSession, actor uuid.UUID) ([]Effect, error) {
	if err := requireParticipant(s, actor); err != nil {
		return nil, err
	}
	if err := requireStatus(s, "finalize quality for", models.OfficeHourInProgress, models.OfficeHourCompleted); err != nil {
		return nil, err
	}
	applyQualityFinalize(s)
	return []Effect{publishUpdate(s)}, nil
}

func applyQualityFinalize(s *models.OfficeHourSession) {
	report := BuildQualityReport(s)
	stable := report.StableQualityPercentage
	score := report.Score
	s.Analytics.AverageStats = report.AverageStats
	s.Analytics.StableQualityPercentage = &stable
	s.Analytics.QualityScore = &score
}

func (s *OfficeHourService) IngestSample(ctx context.Context, actor models.Identity, id uuid.UUID, sample models.QualitySample) (*models.OfficeHourSession, error) {
	return s.apply(ctx, id, "quality sample", func(sess *models.OfficeHourSession, now time.Time) ([]Effect, error) {
		return IngestQualitySample(sess, actor.UserID, sample, now)
	})
}

func (s *OfficeHourService) FinalizeQuality(ctx context.Context, actor models.Identity, id uuid.UUID) (*models.OfficeHourSession, error) {
	return s.apply(ctx, id, "quality finalize", func(sess *models.OfficeHourSession, _ time.Time) ([]Effect, error) {
		return FinalizeSessionQuality(sess, actor.UserID)
	})
}

func (s *OfficeHourService) QualityReport(ctx context.Context, actor models.Identity, id uuid.UUID) (*models.QualityReport, error) {
	session, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return BuildQualityReport(session), nil
}
