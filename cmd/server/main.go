package main

import (
    "context"
    "os"
    "os/signal"
    "strings"
    "syscall"
    "time"

    "github.com/kiliankoe/flagdash/internal/config"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    "github.com/spf13/cobra"
    "github.com/spf13/pflag"
)

const version = "v1.0.0"

func main() {
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()
    cobra.CheckErr(newCmd().ExecuteContext(ctx))
}

func newCmd() *cobra.Command {
    cmd := &cobra.Command{
        Use:           "flagdash",
        Short:         "Multiplayer flag quiz: guess the country before the clock runs out.",
        Args:          cobra.ExactArgs(0),
        Version:       version,
        SilenceErrors: true,
        SilenceUsage:  true,
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg, err := config.Load(cmd.Flags())
            if err != nil {
                return err
            }
            setupLogging(cfg.LogLevel)
            return serve(cmd.Context(), cfg)
        },
    }

    fs := cmd.Flags()
    fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
        return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
    })
    config.RegisterFlags(fs)

    cmd.CompletionOptions.HiddenDefaultCmd = true
    cmd.SetHelpCommand(&cobra.Command{Hidden: true})
    cmd.SetVersionTemplate("flagdash {{.Version}}\n")
    return cmd
}

// zerolog setup (human-friendly console)
func setupLogging(level string) {
    zerolog.TimeFieldFormat = time.RFC3339
    cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
    log.Logger = log.Output(cw)

    lvl, err := zerolog.ParseLevel(level)
    if err != nil {
        lvl = zerolog.InfoLevel
    }
    zerolog.SetGlobalLevel(lvl)
}
