package vehicle

import "github.com/go-gl/mathgl/mgl64"

// OvertakeParams tunes when an AI car goes for a pass.
type OvertakeParams struct {
	Distance      float64 `mapstructure:"overtakeDistance" json:"overtakeDistance"`
	LateralOffset float64 `mapstructure:"overtakeLateralOffset" json:"overtakeLateralOffset"`
	SpeedBoost    float64 `mapstructure:"overtakeSpeedBoost" json:"overtakeSpeedBoost"`
}

// OvertakeDecision is the transient result of one overtake check.
type OvertakeDecision struct {
	Overtaking    bool
	LateralOffset float64
}

// DecideOvertake reports whether follower should pass target: the target must
// be closer than p.Distance and strictly ahead along the follower's tangent.
func DecideOvertake(follower, target State, tangent mgl64.Vec3, p OvertakeParams) OvertakeDecision {
	toTarget := target.Position.Sub(follower.Position)
	overtaking := toTarget.Len() < p.Distance && tangent.Dot(toTarget) > 0
	if !overtaking {
		return OvertakeDecision{}
	}
	return OvertakeDecision{Overtaking: true, LateralOffset: p.LateralOffset}
}
