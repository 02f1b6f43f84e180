package app

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	utilserrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/component-base/version"
	"k8s.io/component-base/version/verflag"
	"k8s.io/klog/v2"

	"modbushil/cmd/emulator/options"
	"modbushil/pkg/emulator"
	baseoptions "modbushil/pkg/generic/options"
)

const (
	ComponentEmulator = "battery-emulator"
)

func NewEmulatorCmd() *cobra.Command {
	cleanFlagSet := pflag.NewFlagSet(ComponentEmulator, pflag.ContinueOnError)
	o := options.NewDefaultOptions()
	cmd := &cobra.Command{
		Use:                ComponentEmulator,
		Long:               `The battery emulator serves a battery model over Modbus TCP for hardware in the loop tests.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cleanFlagSet.Parse(args); err != nil {
				klog.ErrorS(err, "Failed to parse flag")
				_ = cmd.Usage()
				os.Exit(1)
			}

			cmds := cleanFlagSet.Args()
			if len(cmds) > 0 {
				klog.ErrorS(nil, "Unknown command", "command", cmds[0])
				_ = cmd.Usage()
				os.Exit(1)
			}

			baseoptions.PrintHelpAndExitIfRequested(cmd, cleanFlagSet)
			baseoptions.PrintDefaultConfigAndExitIfRequested(options.NewDefaultOptions(), cleanFlagSet)
			verflag.PrintAndExitIfRequested()

			if err := baseoptions.ParseAndApplyConfigFile(o, args); err != nil {
				return err
			}

			if errs := options.Validate(o); len(errs) != 0 {
				return utilserrors.NewAggregate(errs)
			}

			klog.Infof("Version: %+v", version.Get())
			return run(o)
		},
	}

	verflag.AddFlags(cleanFlagSet)
	o.AddFlags(cleanFlagSet)
	o.AddBaseFlags(cmd, cleanFlagSet)

	return cmd
}

func run(o *options.Options) error {
	battery, err := emulator.NewBattery(o.Battery)
	if err != nil {
		return err
	}
	if err := battery.Start(o.Addr()); err != nil {
		return err
	}
	defer battery.Close()

	stopCh := make(chan struct{})
	go battery.Run(stopCh)

	exitCh := make(chan os.Signal, 1)
	signal.Notify(exitCh, syscall.SIGINT, syscall.SIGTERM)
	<-exitCh
	close(stopCh)
	return nil
}
