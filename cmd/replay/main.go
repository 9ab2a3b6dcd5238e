package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/zhukov-alex/cdcrouter/internal/app"
	"github.com/zhukov-alex/cdcrouter/internal/config"
)

func main() {
	log.SetFlags(log.Llongfile | log.Ldate | log.Ltime | log.Lmicroseconds)

	var cfgFile string
	cobra.OnInitialize(config.NewConfigInit(&cfgFile))

	cmd := &cobra.Command{
		Use:   "replay <event.json>",
		Short: "Dispatch a saved stream event once and print the batch report",
		Args:  cobra.ExactArgs(1),
		RunE:  app.ReplayCmd,
	}

	resolve := &cobra.Command{
		Use:   "resolve [message-body]",
		Short: "Print the original payload of a received message body",
		Args:  cobra.MaximumNArgs(1),
		RunE:  app.ResolveCmd,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "Path to the configuration file (default: config/config.yaml)")
	cmd.AddCommand(resolve)

	if err := cmd.Execute(); err != nil {
		log.Fatalf("command error: %v", err)
	}
}
