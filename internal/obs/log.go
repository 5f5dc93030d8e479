package obs

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogging configures the global zerolog logger. Development gets a
// human-readable console writer, everything else emits JSON.
func SetupLogging(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// SecurityEvent returns a Warn-level event tagged for security alerting.
// Token replay, signature mismatch and cross-tenant access attempts all go
// through here so they can be routed to the same sink.
func SecurityEvent(event string) *zerolog.Event {
	return log.Warn().Str("security_event", event)
}
