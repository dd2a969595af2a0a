package evaluator

// RuleKey 规则分级键（类别.级别），用于查找处置措施
type RuleKey string

const (
	KeyFlowRateLow             RuleKey = "flow_rate.low"
	KeyFlowRateHigh            RuleKey = "flow_rate.high"
	KeyFlowVarianceWarning     RuleKey = "flow_variance.warning"
	KeyTimeRemainingCritical   RuleKey = "time_remaining.critical"
	KeyTimeRemainingWarning    RuleKey = "time_remaining.warning"
	KeyPediatricSafetyCritical RuleKey = "pediatric_safety.critical"
	KeyAdultSafetyCritical     RuleKey = "adult_safety.critical"
	KeyAdultSafetyWarning      RuleKey = "adult_safety.warning"
)

// Catalogue 处置措施目录（数据，可通过配置覆盖）
type Catalogue map[RuleKey][]string

// DefaultCatalogue 默认处置措施
func DefaultCatalogue() Catalogue {
	return Catalogue{
		KeyFlowRateLow:             {"check IV line", "adjust bag pressure", "replace catheter"},
		KeyFlowRateHigh:            {"stop the flow immediately", "adjust rate", "check IV pump"},
		KeyFlowVarianceWarning:     {"adjust flow rate", "check equipment"},
		KeyTimeRemainingCritical:   {"prepare new IV bag", "notify physician", "check for new order"},
		KeyTimeRemainingWarning:    {"prepare new IV bag", "check order"},
		KeyPediatricSafetyCritical: {"reduce rate immediately", "notify physician", "check for edema"},
		KeyAdultSafetyCritical:     {"reduce rate immediately", "check for edema", "measure I/O balance"},
		KeyAdultSafetyWarning:      {"monitor I/O", "check symptoms"},
	}
}

// Merge 返回合并后的新目录，overrides 中的非空列表覆盖默认值
func (c Catalogue) Merge(overrides map[string][]string) Catalogue {
	merged := make(Catalogue, len(c)+len(overrides))
	for k, v := range c {
		merged[k] = v
	}
	for k, v := range overrides {
		if len(v) > 0 {
			merged[RuleKey(k)] = v
		}
	}
	return merged
}

// Actions 返回措施副本（候选报警之间不共享底层数组）
func (c Catalogue) Actions(key RuleKey) []string {
	actions := c[key]
	out := make([]string, len(actions))
	copy(out, actions)
	return out
}
