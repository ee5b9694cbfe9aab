package personnel

// Tier is the organizational depth a role belongs to.
type Tier int

const (
	TierLeadership Tier = iota
	TierMid
	TierExecution
)

func (t Tier) String() string {
	switch t {
	case TierLeadership:
		return "leadership"
	case TierMid:
		return "mid"
	case TierExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// HistoryPoint is a single period of a record's score history.
type HistoryPoint struct {
	Period string  `json:"period" yaml:"period"`
	Value  float64 `json:"value" yaml:"value"`
}

// Record is a normalized person loaded into a Registry.
type Record struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Role      Role           `json:"role"`
	Score     float64        `json:"score"`
	ManagerID string         `json:"manager_id,omitempty"`
	History   []HistoryPoint `json:"history,omitempty"`
	Source    string         `json:"-"`
}

// Tier derives the record's tier from its role.
func (r Record) Tier() Tier {
	return r.Role.Tier()
}
