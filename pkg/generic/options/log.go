package options

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"k8s.io/component-base/config"
	"k8s.io/component-base/logs"
	"k8s.io/component-base/logs/registry"
)

// LoggingConfiguration wraps the component-base logging options so that they
// can be set from an options file.
type LoggingConfiguration struct {
	config.LoggingConfiguration
}

func NewDefaultLoggingConfiguration() LoggingConfiguration {
	return LoggingConfiguration{
		config.LoggingConfiguration{
			Format:    "text",
			Verbosity: 2,
		},
	}
}

func (l *LoggingConfiguration) ValidateAndApply() error {
	o := logs.NewOptions()
	o.Config.Format = l.Format
	o.Config.Verbosity = l.Verbosity
	o.Config.VModule = l.VModule
	return o.ValidateAndApply()
}

type loggingFile struct {
	Format    string                      `json:"format"`
	Verbosity config.VerbosityLevel       `json:"verbosity"`
	VModule   config.VModuleConfiguration `json:"vmodule,omitempty"`
}

func (l *LoggingConfiguration) MarshalJSON() ([]byte, error) {
	return json.Marshal(&loggingFile{
		Format:    l.Format,
		Verbosity: l.Verbosity,
		VModule:   l.VModule,
	})
}

func (l *LoggingConfiguration) UnmarshalJSON(bytes []byte) error {
	in := &loggingFile{Format: l.Format, Verbosity: l.Verbosity}
	if err := json.Unmarshal(bytes, in); err != nil {
		return err
	}
	l.Format = in.Format
	l.Verbosity = in.Verbosity
	l.VModule = in.VModule
	return nil
}

// visibleLoggingFlags are shown in --help, the other component-base flags
// stay hidden.
var visibleLoggingFlags = map[string]bool{
	"v":              true,
	"vmodule":        true,
	"logging-format": true,
}

func (l *LoggingConfiguration) BindLoggingFlags(fs *pflag.FlagSet) {
	logsFs := pflag.NewFlagSet("", pflag.ContinueOnError)
	logs.BindLoggingFlags(&l.LoggingConfiguration, logsFs)
	logsFs.VisitAll(func(f *pflag.Flag) {
		if !visibleLoggingFlags[f.Name] {
			f.Hidden = true
			return
		}
		if f.Name == "logging-format" {
			f.Usage = fmt.Sprintf(`Sets the log format. Permitted formats: "%s".`, strings.Join(registry.LogRegistry.List(), `", "`))
		}
	})
	fs.AddFlagSet(logsFs)
}
