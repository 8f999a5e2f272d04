package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/exort/exort/internal/profile"
	"github.com/exort/exort/server"
	"github.com/exort/exort/store"
	"github.com/exort/exort/store/db"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "exort",
	Short: "An AI chess coach over your imported games",
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:      viper.GetString("mode"),
			Addr:      viper.GetString("addr"),
			Port:      viper.GetInt("port"),
			Data:      viper.GetString("data"),
			Driver:    viper.GetString("driver"),
			DSN:       viper.GetString("dsn"),
			JWTSecret: viper.GetString("jwt-secret"),
			Version:   version,
		}
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid profile", slog.Any("error", err))
			os.Exit(1)
		}
		instanceProfile.FromEnv()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			slog.Error("failed to create db driver", slog.Any("error", err))
			os.Exit(1)
		}

		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", slog.Any("error", err))
			os.Exit(1)
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance)
		if err != nil {
			slog.Error("failed to create server", slog.Any("error", err))
			os.Exit(1)
		}

		printGreeting(instanceProfile)

		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			if err := s.Start(groupCtx); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		group.Go(func() error {
			signals := make(chan os.Signal, 1)
			signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
			select {
			case sig := <-signals:
				slog.Info("received signal, shutting down", slog.String("signal", sig.String()))
			case <-groupCtx.Done():
			}
			s.Shutdown(ctx)
			cancel()
			return nil
		})

		if err := group.Wait(); err != nil {
			slog.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	},
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8081)
	viper.SetDefault("driver", "sqlite")

	rootCmd.PersistentFlags().String("mode", "demo", `mode of the server, can be "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of the server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().String("jwt-secret", "", "secret used to verify API bearer tokens")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
	viper.SetEnvPrefix("exort")
	viper.AutomaticEnv()
}

func printGreeting(p *profile.Profile) {
	fmt.Printf(`exort %s
mode:    %s
driver:  %s
data:    %s
addr:    %s:%d
`, p.Version, p.Mode, p.Driver, p.Data, p.Addr, p.Port)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to run command", slog.Any("error", err))
		os.Exit(1)
	}
}
