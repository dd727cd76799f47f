package domain

// SecurityLevel é o nível global de postura de segurança.
type SecurityLevel string

const (
	LevelNormal      SecurityLevel = "NORMAL"
	LevelElevated    SecurityLevel = "ELEVATED"
	LevelUnderAttack SecurityLevel = "UNDER_ATTACK"
)

// ValidLevel diz se o valor é um dos níveis conhecidos.
func ValidLevel(l SecurityLevel) bool {
	switch l {
	case LevelNormal, LevelElevated, LevelUnderAttack:
		return true
	}
	return false
}

// Posture é o agregado de postura para relatórios (read-mostly).
type Posture struct {
	ActiveBlocks     int           `json:"activeBlocks"`
	RecentViolations int           `json:"recentViolations"`
	Level            SecurityLevel `json:"securityLevel"`
	Emergency        bool          `json:"emergencyMode"`
}
