package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/alfredjeanlab/agora/internal/client"
	"github.com/alfredjeanlab/agora/internal/ui"
	"github.com/spf13/cobra"
)

var (
	serverAddr   string
	httpURL      string
	transport    string
	authToken    string
	jsonOutput   bool
	actor        string
	deliberation string

	agoraClient client.AgoraClient
)

func defaultActor() string {
	if s := os.Getenv("AGORA_ACTOR"); s != "" {
		return s
	}
	if a := active().Actor; a != "" {
		return a
	}
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

func defaultHTTPURL() string {
	if s := os.Getenv("AGORA_HTTP_URL"); s != "" {
		return s
	}
	if u := active().URL; u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("AGORA_SERVER"); s != "" {
		return s
	}
	if a := active().GRPCAddr; a != "" {
		return a
	}
	return "localhost:9090"
}

func defaultToken() string {
	if s := os.Getenv("AGORA_TOKEN"); s != "" {
		return s
	}
	return active().Token
}

func defaultDeliberation() string {
	if s := os.Getenv("AGORA_DELIBERATION"); s != "" {
		return s
	}
	if d := active().Deliberation; d != "" {
		return d
	}
	return "default"
}

var rootCmd = &cobra.Command{
	Use:   "agora <command>",
	Short: "CLI client for the agora argumentation engine",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		agoraClient = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if agoraClient != nil {
			agoraClient.Close()
		}
	},
	SilenceUsage: true,
}

func newClient() (client.AgoraClient, error) {
	switch transport {
	case "http":
		return client.NewHTTPClient(httpURL, authToken), nil
	case "grpc":
		c, err := client.NewGRPCClient(serverAddr, authToken)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "actor making moves")
	rootCmd.PersistentFlags().StringVarP(&deliberation, "deliberation", "d", defaultDeliberation(), "deliberation id")

	rootCmd.AddGroup(
		&cobra.Group{ID: "graph", Title: "Graph:"},
		&cobra.Group{ID: "dialogue", Title: "Dialogue:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(helpFunc)

	// Graph
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(instantiateCmd)
	rootCmd.AddCommand(cqCmd)

	// Dialogue
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(obligationsCmd)
	rootCmd.AddCommand(commitmentsCmd)

	// Views
	rootCmd.AddCommand(labelsCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(schemesCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
