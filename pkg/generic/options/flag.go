package options

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

// Optioner is implemented by the options of every command.
type Optioner interface {
	AddFlags(*pflag.FlagSet)
	GetBaseOptions() *BaseOptions
}

// BaseOptions are shared by all commands: an options file and the logging
// configuration.
type BaseOptions struct {
	ConfigFile string `json:"-"`
	Logging    LoggingConfiguration
}

func NewDefaultBaseOptions() BaseOptions {
	return BaseOptions{
		Logging: NewDefaultLoggingConfiguration(),
	}
}

func (bo *BaseOptions) GetBaseOptions() *BaseOptions {
	return bo
}

// AddBaseFlags binds --config, the logging flags, --help and --default-config.
func (bo *BaseOptions) AddBaseFlags(cmd *cobra.Command, fs *pflag.FlagSet) {
	bo.bindConfigFile(fs)
	bo.Logging.BindLoggingFlags(fs)
	bindHelp(cmd, fs)
	fs.Bool("default-config", false, "Print the default configuration as YAML and exit. It can be used as a starting point for --config.")
}

func (bo *BaseOptions) bindConfigFile(fs *pflag.FlagSet) {
	fs.StringVarP(&bo.ConfigFile, "config", "c", bo.ConfigFile, "YAML or JSON options file. ${VAR} references are expanded from the environment. Flags on the command line override the file.")
}

func (bo *BaseOptions) ValidateAndApply() error {
	return bo.Logging.ValidateAndApply()
}

func PrintHelpAndExitIfRequested(cmd *cobra.Command, fs *pflag.FlagSet) {
	if requested(fs, "help") {
		_ = cmd.Help()
		os.Exit(0)
	}
}

func PrintDefaultConfigAndExitIfRequested(config interface{}, fs *pflag.FlagSet) {
	if !requested(fs, "default-config") {
		return
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		klog.ErrorS(err, "Failed to marshal default config to yaml")
		os.Exit(1)
	}
	fmt.Printf("# Default configuration, pass a modified copy with --config.\n\n%s\n", data)
	os.Exit(0)
}

func requested(fs *pflag.FlagSet, name string) bool {
	v, err := fs.GetBool(name)
	if err != nil {
		klog.ErrorS(err, "Flag is not a bool, programmer error", "flag", name)
		os.Exit(1)
	}
	return v
}

func bindHelp(cmd *cobra.Command, fs *pflag.FlagSet) {
	fs.BoolP("help", "h", false, fmt.Sprintf("help for %s", cmd.Name()))

	// cobra's default usage and help funcs add the global flags
	const usageFmt = "Usage:\n  %s\n\nFlags:\n%s"
	cmd.SetUsageFunc(func(cmd *cobra.Command) error {
		_, _ = fmt.Fprintf(cmd.OutOrStderr(), usageFmt, cmd.UseLine(), fs.FlagUsagesWrapped(2))
		return nil
	})
	cmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n"+usageFmt, cmd.Long, cmd.UseLine(), fs.FlagUsagesWrapped(2))
	})
}

// ParseAndApplyConfigFile loads the options file into o, then parses args
// again so that explicit flags win.
func ParseAndApplyConfigFile(o Optioner, args []string) error {
	if len(o.GetBaseOptions().ConfigFile) == 0 {
		return nil
	}
	if err := parseConfigFile(o); err != nil {
		return err
	}

	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	o.AddFlags(fs)
	o.GetBaseOptions().bindConfigFile(fs)
	o.GetBaseOptions().Logging.BindLoggingFlags(fs)
	return fs.Parse(args)
}

func parseConfigFile(out Optioner) error {
	path, err := filepath.Abs(out.GetBaseOptions().ConfigFile)
	if err != nil {
		klog.ErrorS(err, "Failed to resolve config file", "file", out.GetBaseOptions().ConfigFile)
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		klog.ErrorS(err, "Failed to read config file", "file", path)
		return err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), out); err != nil {
		klog.ErrorS(err, "Failed to unmarshal config file", "file", path)
		return err
	}
	klog.V(3).InfoS("Succeed to load config file", "file", path)
	return nil
}
