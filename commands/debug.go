package commands

import (
	"fmt"

	"github.com/rs/zerolog"
)

var (
	debugMode bool
	baseLevel = zerolog.InfoLevel
)

func init() {
	Register(&Command{
		Name:        "/debug",
		Description: "Toggle debug logging for storage and assistant interactions",
		Hidden:      true,
		Handler: func(args []string) bool {
			debugMode = !debugMode
			if debugMode {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
				fmt.Println("Debug mode: ON")
			} else {
				zerolog.SetGlobalLevel(baseLevel)
				fmt.Println("Debug mode: OFF")
			}
			return false
		},
	})
}

// SetBaseLogLevel sets the level /debug returns to when switched off
func SetBaseLogLevel(l zerolog.Level) {
	baseLevel = l
}

// IsDebugMode returns whether debug mode is enabled
func IsDebugMode() bool {
	return debugMode
}
