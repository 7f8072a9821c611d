package analytics

// ComparisonMetrics holds the percentage difference between a profile and its peer
// baseline for key metrics. A nil field means the baseline was zero.
type ComparisonMetrics struct {
	MatchRateChange             *float64 `json:"match_rate_change,omitempty"`
	LikeRateChange              *float64 `json:"like_rate_change,omitempty"`
	SwipesPerDayChange          *float64 `json:"swipes_per_day_change,omitempty"`
	AppOpensPerDayChange        *float64 `json:"app_opens_per_day_change,omitempty"`
	ResponseRateChange          *float64 `json:"response_rate_change,omitempty"`
	AvgConversationLengthChange *float64 `json:"avg_conversation_length_change,omitempty"`
	OneMessageShareChange       *float64 `json:"one_message_share_change,omitempty"`
}

// PeerBaseline is the average of other profiles' all-time metrics.
type PeerBaseline struct {
	Profiles              int     `json:"profiles"`
	MatchRate             float64 `json:"match_rate"`
	LikeRate              float64 `json:"like_rate"`
	SwipesPerDay          float64 `json:"swipes_per_day"`
	AppOpensPerDay        float64 `json:"app_opens_per_day"`
	ResponseRate          float64 `json:"response_rate"`
	AvgConversationLength float64 `json:"avg_conversation_length"`
	OneMessageShare       float64 `json:"one_message_share"`
}

// CompareMeta computes the percentage differences of current against the peers.
func CompareMeta(current ProfileMeta, peers PeerBaseline) *ComparisonMetrics {
	comparison := &ComparisonMetrics{}

	calculatePercentageChange := func(current, baseline float64) *float64 {
		if baseline > 0 {
			change := ((current - baseline) / baseline) * 100
			return &change
		}
		return nil
	}

	comparison.MatchRateChange = calculatePercentageChange(current.MatchRate, peers.MatchRate)
	comparison.LikeRateChange = calculatePercentageChange(current.LikeRate, peers.LikeRate)
	comparison.SwipesPerDayChange = calculatePercentageChange(current.SwipesCombinedPerDay, peers.SwipesPerDay)
	comparison.AppOpensPerDayChange = calculatePercentageChange(current.AppOpensPerDay, peers.AppOpensPerDay)
	comparison.ResponseRateChange = calculatePercentageChange(current.ResponseRate, peers.ResponseRate)
	comparison.AvgConversationLengthChange = calculatePercentageChange(
		current.AverageConversationLengthInMessages,
		peers.AvgConversationLength,
	)
	comparison.OneMessageShareChange = calculatePercentageChange(
		float64(current.PercentOfOneMessageConversations),
		peers.OneMessageShare,
	)

	return comparison
}
