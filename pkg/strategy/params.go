package strategy

// Params expresses the tunable knobs shared by strategy constructors. Zero
// values are replaced with the defaults below at construction time, so a YAML
// file only needs to state the knobs it overrides.
type Params struct {
	FireThreshold   float64 `yaml:"fire_threshold"`
	MinRiskReward   float64 `yaml:"min_risk_reward"`
	ATRPeriod       int     `yaml:"atr_period"`
	StopATR         float64 `yaml:"stop_atr"`
	TargetATR       float64 `yaml:"target_atr"`
	StopPctFloor    float64 `yaml:"stop_pct_floor"`
	StopAbsFloor    float64 `yaml:"stop_abs_floor"`
	ClusterLookback int     `yaml:"cluster_lookback"`
	TTLMinDays      int     `yaml:"ttl_min_days"`
	TTLMaxDays      int     `yaml:"ttl_max_days"`
}

// DefaultParams returns the baseline knob settings.
func DefaultParams() Params {
	return Params{
		FireThreshold:   70,
		MinRiskReward:   2.0,
		ATRPeriod:       14,
		StopATR:         1.5,
		TargetATR:       3.0,
		StopPctFloor:    0.005,
		StopAbsFloor:    0.02,
		ClusterLookback: 60,
		TTLMinDays:      2,
		TTLMaxDays:      14,
	}
}

// withDefaults fills zero-valued knobs from DefaultParams.
func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.FireThreshold == 0 {
		p.FireThreshold = def.FireThreshold
	}
	if p.MinRiskReward == 0 {
		p.MinRiskReward = def.MinRiskReward
	}
	if p.ATRPeriod == 0 {
		p.ATRPeriod = def.ATRPeriod
	}
	if p.StopATR == 0 {
		p.StopATR = def.StopATR
	}
	if p.TargetATR == 0 {
		p.TargetATR = def.TargetATR
	}
	if p.StopPctFloor == 0 {
		p.StopPctFloor = def.StopPctFloor
	}
	if p.StopAbsFloor == 0 {
		p.StopAbsFloor = def.StopAbsFloor
	}
	if p.ClusterLookback == 0 {
		p.ClusterLookback = def.ClusterLookback
	}
	if p.TTLMinDays == 0 {
		p.TTLMinDays = def.TTLMinDays
	}
	if p.TTLMaxDays == 0 {
		p.TTLMaxDays = def.TTLMaxDays
	}
	return p
}
