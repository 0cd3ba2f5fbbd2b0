package availability

import "github.com/clinicboard/clinicboard/internal/model"

// PolicyKind discriminates the capacity limit variants.
type PolicyKind int

const (
	PolicyUnlimited PolicyKind = iota
	PolicyCount
	PolicyDuration
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyCount:
		return "count"
	case PolicyDuration:
		return "duration"
	default:
		return "unlimited"
	}
}

// LimitPolicy is the tagged union of daily capacity policies:
// Unlimited, CountBased(dailyLimit) or DurationBased(dailyLimitMinutes).
// The zero value is Unlimited.
type LimitPolicy struct {
	kind    PolicyKind
	count   int
	minutes int
}

func Unlimited() LimitPolicy {
	return LimitPolicy{}
}

func CountLimit(dailyLimit int) LimitPolicy {
	if dailyLimit <= 0 {
		return Unlimited()
	}
	return LimitPolicy{kind: PolicyCount, count: dailyLimit}
}

func DurationLimit(dailyMinutes int) LimitPolicy {
	if dailyMinutes <= 0 {
		return Unlimited()
	}
	return LimitPolicy{kind: PolicyDuration, minutes: dailyMinutes}
}

func (p LimitPolicy) Kind() PolicyKind { return p.kind }

func (p LimitPolicy) IsUnlimited() bool { return p.kind == PolicyUnlimited }

// DailyLimit is the count ceiling; only meaningful for PolicyCount.
func (p LimitPolicy) DailyLimit() int { return p.count }

// DailyLimitMinutes is the duration budget; only meaningful for PolicyDuration.
func (p LimitPolicy) DailyLimitMinutes() int { return p.minutes }

// PolicyFromRow normalizes a persisted limit row into a policy. Inactive rows
// and rows with neither field set are Unlimited. When both fields are set the
// duration budget is authoritative, since per-appointment durations differ and
// a fixed slot count is the wrong capacity unit for mixed services.
func PolicyFromRow(row *model.CapacityLimit) LimitPolicy {
	if row == nil || !row.IsActive {
		return Unlimited()
	}
	if row.DailyLimitMinutes != nil && *row.DailyLimitMinutes > 0 {
		return DurationLimit(*row.DailyLimitMinutes)
	}
	if row.DailyLimit != nil && *row.DailyLimit > 0 {
		return CountLimit(*row.DailyLimit)
	}
	return Unlimited()
}
