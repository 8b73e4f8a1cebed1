package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stemsi/exstem-adaptive/internal/adaptive"
	"github.com/stemsi/exstem-adaptive/internal/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "examctl",
		Short:        "Operator tooling for the adaptive exam engine",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
	pf.String("log-format", "pretty", "Log format (pretty, json)")
	pf.String("config", "", "Config file (default: ./examctl.yaml)")

	root.AddCommand(tokenCmd(), simulateCmd(), seedQuestionsCmd())
	return root
}

// viperForCmd binds a command's flags and the server's environment keys to a
// fresh viper instance. Flag "jwt-secret" is read from JWT_SECRET and so on.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.InheritedFlags())

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("examctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/exstem")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log := setupLogger(v)
			log.Warn().Err(err).Msg("error reading config file")
		}
	}
	return v
}

func setupLogger(v *viper.Viper) zerolog.Logger {
	return logger.New(os.Stderr, v.GetString("log-level"), v.GetString("log-format"))
}

// engineFlags registers the engine tuning flags. Their env names match the
// server's (ENGINE_LAMBDA, ...).
func engineFlags(cmd *cobra.Command) {
	def := adaptive.DefaultConfig()
	f := cmd.Flags()
	f.Float64("engine-lambda", def.Lambda, "Shrinkage strength of the score prior")
	f.Float64("engine-prior", def.Prior, "Score with no evidence")
	f.Int("engine-window", def.WindowES, "Trailing scores checked for stability")
	f.Float64("engine-delta", def.DeltaThr, "Max spread inside the window to call the score stable")
	f.Float64("engine-min-ratio", def.MinRatio, "Fraction of max items served before any stop")
}

func engineFrom(v *viper.Viper) adaptive.Config {
	cfg := adaptive.DefaultConfig()
	cfg.Lambda = v.GetFloat64("engine-lambda")
	cfg.Prior = v.GetFloat64("engine-prior")
	cfg.WindowES = v.GetInt("engine-window")
	cfg.DeltaThr = v.GetFloat64("engine-delta")
	cfg.MinRatio = v.GetFloat64("engine-min-ratio")
	return cfg.Normalize()
}
