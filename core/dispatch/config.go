package dispatch

// Config defines dispatch engine settings.
type Config struct {
	// MaxAssignAttempts bounds how many times auto-assignment re-runs
	// matching after losing a team to a concurrent assignment.
	MaxAssignAttempts int `json:"max_assign_attempts"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.MaxAssignAttempts <= 0 {
		c.MaxAssignAttempts = 3
	}
}
