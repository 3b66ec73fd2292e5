package flags

import (
	"strings"

	"github.com/samber/lo"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	LogFormat = "log-format"
	LogLevel  = "log-level"
	LogSource = "log-source"
	Metrics   = "metrics"
	NoCache   = "no-cache"
)

// Init declares the global flags on flags and binds them to viper, so that
// each one can also be set from a NODECTL_* environment variable.
func Init(flags *flag.FlagSet) {
	flags.String(LogFormat, "text", "log format (json, text)")
	flags.String(LogLevel, "WARN", "minimum log level")
	flags.Bool(LogSource, false, "add source code location to logs")
	flags.Bool(Metrics, false, "print node provider resolution metrics on exit")
	flags.Bool(NoCache, false, "always construct a fresh node provider")

	viper.SetEnvPrefix("nodectl")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	lo.Must0(viper.BindPFlags(flags))
}
