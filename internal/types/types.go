// Package types holds the data model shared across the ingestion,
// opportunity, distribution and observability subsystems.
package types

import "time"

// Provenance marks where a MarketSnapshot's data originated.
type Provenance string

const (
	ProvenanceAPI    Provenance = "api"
	ProvenanceStream Provenance = "stream"
	ProvenanceCache  Provenance = "cache"
)

// PriceBlock is the optional price observation of a MarketSnapshot.
type PriceBlock struct {
	Last        float64 `json:"last"`
	Bid         float64 `json:"bid"`
	Ask         float64 `json:"ask"`
	High24      float64 `json:"high_24h"`
	Low24       float64 `json:"low_24h"`
	Change24    float64 `json:"change_24h"`
	Change24Pct float64 `json:"change_24h_pct"`
}

// FundingBlock is the optional funding-rate observation of a MarketSnapshot.
type FundingBlock struct {
	Rate           float64   `json:"rate"`
	NextFundingAt  time.Time `json:"next_funding_at"`
	EstimatedRate  float64   `json:"estimated_rate"`
}

// VolumeBlock is the optional volume observation of a MarketSnapshot.
type VolumeBlock struct {
	Base24       float64 `json:"base_24h"`
	Quote24      float64 `json:"quote_24h"`
	TradeCount24 int64   `json:"trade_count_24h"`
}

// OrderBookLevel is a single price/size rung of an order-book ladder.
type OrderBookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBookBlock is the optional order-book observation of a MarketSnapshot.
type OrderBookBlock struct {
	Bids []OrderBookLevel `json:"bids"`
	Asks []OrderBookLevel `json:"asks"`
}

// MarketSnapshot is a single (venue, pair, instant) observation.
//
// Invariants: TimestampMs is monotonic non-decreasing per (Venue, Pair);
// at least one of Price/Funding/Volume/OrderBook is non-nil; Provenance is
// set by the producer and never rewritten downstream.
type MarketSnapshot struct {
	Venue       string          `json:"venue"`
	Pair        string          `json:"pair"`
	TimestampMs int64           `json:"timestamp_ms"`
	Price       *PriceBlock     `json:"price,omitempty"`
	Funding     *FundingBlock   `json:"funding,omitempty"`
	Volume      *VolumeBlock    `json:"volume,omitempty"`
	OrderBook   *OrderBookBlock `json:"order_book,omitempty"`
	Provenance  Provenance      `json:"provenance"`
}

// HasData reports whether at least one optional block is populated.
func (s *MarketSnapshot) HasData() bool {
	return s.Price != nil || s.Funding != nil || s.Volume != nil || s.OrderBook != nil
}

// OpportunityType distinguishes how an ArbitrageOpportunity was produced.
type OpportunityType string

const (
	OpportunityFundingRate OpportunityType = "funding-rate"
	OpportunityPrice       OpportunityType = "price"
	OpportunityTechnical   OpportunityType = "technical"
)

// ArbitrageOpportunity is an immutable, typed trading hypothesis.
//
// Invariants: LongVenue != ShortVenue; |RateDifference| >= configured
// threshold; Expiry, when set, is strictly after DetectedAt.
type ArbitrageOpportunity struct {
	ID               string          `json:"id"`
	Pair             string          `json:"pair"`
	LongVenue        string          `json:"long_venue"`
	ShortVenue       string          `json:"short_venue"`
	RateDifference   float64         `json:"rate_difference"`
	NetRateDiff      float64         `json:"net_rate_difference"`
	Confidence       float64         `json:"confidence"`
	DetectedAt       time.Time       `json:"detected_at"`
	Expiry           *time.Time      `json:"expiry,omitempty"`
	Type             OpportunityType `json:"type"`
	FallbackStdDev   bool            `json:"fallback_stddev,omitempty"`
	EntryPrice       float64         `json:"entry_price,omitempty"`
	StopLoss         float64         `json:"stop_loss,omitempty"`
	TakeProfit       float64         `json:"take_profit,omitempty"`
}

// Priority is the delivery priority of a distribution message or queue entry.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// DistributionStrategy names a C9 recipient-selection strategy.
type DistributionStrategy string

const (
	StrategyBroadcast   DistributionStrategy = "broadcast"
	StrategyRoundRobin  DistributionStrategy = "round-robin"
	StrategyPriority    DistributionStrategy = "priority"
	StrategyGeographic  DistributionStrategy = "geographic"
)

// DistributionMessage is produced by C9 and handed to the Queue Manager.
//
// Invariants: TargetUsers is non-empty for per-user strategies; Strategy is
// compatible with the target cardinality; Priority determines queue routing.
type DistributionMessage struct {
	MessageID    string               `json:"message_id"`
	Opportunity  *ArbitrageOpportunity `json:"opportunity"`
	TargetUsers  []string             `json:"target_users"`
	Strategy     DistributionStrategy `json:"strategy"`
	Priority     Priority             `json:"priority"`
	DedupID      string               `json:"dedup_id,omitempty"`
	Delay        time.Duration        `json:"delay,omitempty"`
}

// QueueType names a semantic routing bucket with its own retry/visibility policy.
type QueueType string

const (
	QueueHighPriority QueueType = "high-priority"
	QueueStandard     QueueType = "standard"
	QueueLowPriority  QueueType = "low-priority"
	QueueRetry        QueueType = "retry"
	QueueBatch        QueueType = "batch"
	QueueStreaming    QueueType = "streaming"
	QueueDeadLetter   QueueType = "dead-letter"
)

// QueueMessage wraps a payload travelling through the Queue Manager.
//
// Invariants: ReceiveCount <= MaxReceiveCount, else the message must be
// moved to the dead-letter queue; within VisibilityTimeout the message is
// invisible to other workers.
type QueueMessage struct {
	ID                string        `json:"id"`
	QueueType         QueueType     `json:"queue_type"`
	Priority          Priority      `json:"priority"`
	Payload           []byte        `json:"payload"`
	ReceiveCount      int           `json:"receive_count"`
	MaxReceiveCount   int           `json:"max_receive_count"`
	VisibilityTimeout time.Duration `json:"visibility_timeout"`
	GroupID           string        `json:"group_id,omitempty"`
	DedupID           string        `json:"dedup_id,omitempty"`
	EnqueuedAt        time.Time     `json:"enqueued_at"`
	VisibleAt         time.Time     `json:"-"`
	DeadLetterReason  string        `json:"dead_letter_reason,omitempty"`
}

// UserTier is the subscription tier of a UserProfile, used by the priority
// distribution strategy's base-score table.
type UserTier string

const (
	TierFree    UserTier = "free"
	TierBasic   UserTier = "basic"
	TierPro     UserTier = "pro"
	TierPremium UserTier = "premium"
)

// ChannelEndpoints holds the optional per-channel delivery addresses for a user.
type ChannelEndpoints struct {
	ChatID            string `json:"chat_id,omitempty"`
	Email             string `json:"email,omitempty"`
	Phone             string `json:"phone,omitempty"`
	WebPushSubscription string `json:"web_push_subscription,omitempty"`
}

// UserProfile is mutated only by the out-of-scope user service and cached
// locally with a short TTL.
//
// Invariants: UserID is globally unique; endpoints are validated before
// use; API keys are stored only as ciphertext ([[internal/security]]).
type UserProfile struct {
	UserID             string            `json:"user_id"`
	Tier               UserTier          `json:"tier"`
	ActivityScore      float64           `json:"activity_score"`
	TimezoneOffset     int               `json:"timezone_offset"`
	TradingHourStart   int               `json:"trading_hour_start"`
	TradingHourEnd     int               `json:"trading_hour_end"`
	Endpoints          ChannelEndpoints  `json:"endpoints"`
	APIKeyCiphertext   map[string][]byte `json:"-"`
	RiskTolerance      string            `json:"risk_tolerance,omitempty"`
	ExperienceLevel    string            `json:"experience_level,omitempty"`
}

// Severity is the severity of an alert rule / fired alert.
type Severity string

const (
	SeverityEmergency Severity = "emergency"
	SeverityCritical  Severity = "critical"
	SeverityError     Severity = "error"
	SeverityWarning   Severity = "warning"
	SeverityInfo      Severity = "info"
)

// Condition is a threshold comparison operator.
type Condition string

const (
	CondGreater      Condition = ">"
	CondLess         Condition = "<"
	CondEqual        Condition = "="
	CondNotEqual     Condition = "!="
	CondGreaterEqual Condition = ">="
	CondLessEqual    Condition = "<="
)

// AlertRule is a stored evaluation rule.
type AlertRule struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Component          string        `json:"component"`
	Metric             string        `json:"metric"`
	Condition          Condition     `json:"condition"`
	Threshold          float64       `json:"threshold"`
	Severity           Severity      `json:"severity"`
	EvaluationInterval time.Duration `json:"evaluation_interval"`
	SuppressionWindow  time.Duration `json:"suppression_window,omitempty"`
	Channels           []string      `json:"channels"`
	EscalationPolicy   string        `json:"escalation_policy,omitempty"`
}

// AlertStatus is a node in the alert state graph (§4.12).
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
	AlertSuppressed   AlertStatus = "suppressed"
	AlertEscalated    AlertStatus = "escalated"
	AlertExpired      AlertStatus = "expired"
)

// Alert is a fired instance of an AlertRule.
type Alert struct {
	ID               string      `json:"id"`
	RuleID           string      `json:"rule_id"`
	Component        string      `json:"component"`
	Metric           string      `json:"metric"`
	Severity         Severity    `json:"severity"`
	Status           AlertStatus `json:"status"`
	EscalationLevel  int         `json:"escalation_level"`
	NotificationCount int        `json:"notification_count"`
	CorrelationID    string      `json:"correlation_id,omitempty"`
	FiredAt          time.Time   `json:"fired_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	Value            float64     `json:"value"`
}

// TraceSpan is one node of a distributed trace.
//
// Invariants: a child span's Start >= parent Start; when finished, End is
// set and the duration is computable.
type TraceSpan struct {
	SpanID       string            `json:"span_id"`
	TraceID      string            `json:"trace_id"`
	ParentSpanID string            `json:"parent_span_id,omitempty"`
	Operation    string            `json:"operation"`
	Component    string            `json:"component"`
	Service      string            `json:"service"`
	Start        time.Time         `json:"start"`
	End          time.Time         `json:"end,omitempty"`
	Status       string            `json:"status"`
	Tags         map[string]string `json:"tags,omitempty"`
	Logs         []string          `json:"logs,omitempty"`
	Baggage      map[string]string `json:"baggage,omitempty"`
}

// Duration returns the span's duration once finished.
func (s *TraceSpan) Duration() time.Duration {
	if s.End.IsZero() {
		return 0
	}
	return s.End.Sub(s.Start)
}

// ObservabilityDataPoint is the uniform event ingested by C11.
type ObservabilityDataPoint struct {
	Component string            `json:"component"`
	Metric    string            `json:"metric"`
	Value     float64           `json:"value"`
	Type      string            `json:"type"` // counter|gauge|histogram
	Severity  Severity          `json:"severity"`
	Tags      map[string]string `json:"tags,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
