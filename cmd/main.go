package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bigpicture/internal/cli/scheme/colours"
	"bigpicture/internal/config"
	"bigpicture/internal/story/app"
)

const importUsage = `Usage: importNode "Node Name" path/to/file.txt`

func main() {
	cfg, err := config.Load()
	if err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyLogLevel()

	// current is read by the signal handler while a command runs.
	var current atomic.Pointer[app.App]

	// The engine is only built for commands that need one, so importing
	// text works without audio.
	application := func() (*app.App, error) {
		if a := current.Load(); a != nil {
			return a, nil
		}
		a, err := app.New(cfg)
		if err != nil {
			return nil, err
		}
		current.Store(a)
		return a, nil
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		if a := current.Load(); a != nil {
			a.Close()
		}
		fmt.Println("\n" + colours.Warning.Sprint("👋 Goodbye!"))
		os.Exit(0)
	}()

	rootCmd := &cobra.Command{
		Use:   "bigpicture",
		Short: "🗺️ Narrated mind map for CBSE Commerce",
		Long: `
┌─────────────────────────────────────┐
│  🗺️  CBSE Commerce Big Picture      │
│  Topics you can listen to 🎧        │
└─────────────────────────────────────┘

Import authored text as narrated nodes, browse the content tree and
listen to any node with a voice per speaker.
		`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sn, err := application()
			if err != nil {
				return err
			}
			sn.ShowWelcome()
			return nil
		},
	}

	importCmd := &cobra.Command{
		Use:     "import-node <name> <textFilePath>",
		Aliases: []string{"importNode"},
		Short:   "📥 Import a text file as a narrated node",
		Long:    "Normalize a text file into speaker-tagged paragraphs, save it under data/ and link it into the mind map",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 || args[0] == "" || args[1] == "" {
				return errors.New(importUsage)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			sn, err := app.NewOffline(cfg)
			if err != nil {
				return err
			}
			return sn.ImportNode(args[0], args[1])
		},
	}

	treeCmd := &cobra.Command{
		Use:   "tree",
		Short: "🌳 Show the content tree",
		Long:  "Print the built-in catalog merged with imported nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			watch, _ := cmd.Flags().GetBool("watch")
			sn, err := app.NewOffline(cfg)
			if err != nil {
				return err
			}
			current.Store(sn)
			return sn.ShowTree(watch)
		},
	}

	playCmd := &cobra.Command{
		Use:   "play <node>",
		Short: "🎧 Listen to a node",
		Long:  "Narrate a node by id or by a fuzzy match on its name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sn, err := application()
			if err != nil {
				return err
			}
			return sn.PlayNode(args[0])
		},
	}

	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "🎤 List available voices",
		RunE: func(cmd *cobra.Command, args []string) error {
			sn, err := application()
			if err != nil {
				return err
			}
			return sn.ListVoices()
		},
	}

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "⚙️ Show settings",
		Long:  "Print the effective voice, narration and storage settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			sn, err := application()
			if err != nil {
				return err
			}
			if wipe, _ := cmd.Flags().GetBool("clear-cache"); wipe {
				if err := sn.ClearCache(); err != nil {
					return err
				}
			}
			sn.ConfigureSettings()
			return nil
		},
	}

	settingsCmd.Flags().Bool("clear-cache", false, "Remove cached synthesized audio before printing settings")
	treeCmd.Flags().BoolP("watch", "w", false, "Reprint the tree when the mind map file changes")

	rootCmd.AddCommand(importCmd, treeCmd, playCmd, voicesCmd, settingsCmd)

	err = rootCmd.Execute()
	if a := current.Load(); a != nil {
		a.Close()
	}
	if err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		logrus.WithError(err).Debug("command failed")
		os.Exit(1)
	}
}

// Configuration management with Viper
func init() {
	viper.SetConfigName("bigpicture")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.bigpicture")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("bigpicture")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logrus.WithError(err).Warn("failed to read config file")
		}
	}
}
