package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/qubiclite/iam/internal/identity"
	"github.com/qubiclite/iam/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	nodeURL string
	cfgFile string
	timeout time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "iam",
	Short: "IAM stream CLI",
	Long: `iam reads and publishes IAM packets through an iamd node.

Packets are signed JSON messages attached to the tangle at an address
derived from the stream, a namespace and a position.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.iam")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("iam")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if nodeURL == "" {
			nodeURL = viper.GetString("node_url")
		}
		if nodeURL == "" {
			nodeURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.iam/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&nodeURL, "node", "", "iamd base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "request timeout")

	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(addressCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() (*client.Client, error) {
	return client.New(nodeURL,
		client.WithTimeout(timeout),
		client.WithUserAgent("iam-cli/"+version),
	)
}

func parsePositions(args []string) ([]uint64, error) {
	out := make([]uint64, len(args))
	for i, a := range args {
		p, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid position %q: must be a non-negative integer", a)
		}
		out[i] = p
	}
	return out, nil
}

// ── read ─────────────────────────────────────────────────────────────────────

type readRow struct {
	position uint64
	result   *client.ReadResult
	err      error
}

var readFormat string

var readCmd = &cobra.Command{
	Use:   "read <namespace> <position> [position...]",
	Short: "Read the valid packets at one or more positions of a namespace",
	Long: `Read fetches, reassembles and validates the packets at each position.

Multiple positions are read concurrently and printed in argument order:

  iam read weather 41 42 43`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRead,
}

func init() {
	readCmd.Flags().StringVar(&readFormat, "format", "text", "Output format: text or json")
}

func runRead(cmd *cobra.Command, args []string) error {
	namespace := args[0]
	positions, err := parsePositions(args[1:])
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rowsCh := make(chan readRow, len(positions))
	for _, pos := range positions {
		pos := pos
		go func() {
			r, err := c.Read(ctx, namespace, pos)
			rowsCh <- readRow{position: pos, result: r, err: err}
		}()
	}
	byPos := make(map[uint64]readRow, len(positions))
	for range positions {
		r := <-rowsCh
		byPos[r.position] = r
	}
	ordered := make([]readRow, len(positions))
	for i, pos := range positions {
		ordered[i] = byPos[pos]
	}

	if readFormat == "json" {
		return printReadJSON(namespace, ordered)
	}
	return printReadText(namespace, ordered)
}

func printReadJSON(namespace string, rows []readRow) error {
	type jsonRow struct {
		Index   string          `json:"index"`
		Address string          `json:"address,omitempty"`
		Packets []client.Packet `json:"packets"`
		Error   string          `json:"error,omitempty"`
	}
	out := make([]jsonRow, len(rows))
	for i, r := range rows {
		out[i].Index = fmt.Sprintf("%s/%d", namespace, r.position)
		if r.err != nil {
			out[i].Error = r.err.Error()
			continue
		}
		out[i].Address = r.result.Address
		out[i].Packets = r.result.Packets
	}
	var v any = out
	if len(out) == 1 {
		v = out[0]
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReadText(namespace string, rows []readRow) error {
	if len(rows) == 1 {
		r := rows[0]
		if r.err != nil {
			return fmt.Errorf("read %s/%d: %w", namespace, r.position, r.err)
		}
		if r.result.Statement != "" {
			fmt.Printf("Statement: %s (epoch %d)\n", r.result.Statement, r.result.Epoch)
		}
		fmt.Printf("Address: %s\n", r.result.Address)
		fmt.Printf("Packets: %d\n", len(r.result.Packets))
		for _, p := range r.result.Packets {
			fmt.Printf("  %s\n", p.Message)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "POSITION\tPACKETS\tMESSAGE\tERROR")
	for _, r := range rows {
		switch {
		case r.err != nil:
			fmt.Fprintf(w, "%d\t\t\t%s\n", r.position, r.err)
		case len(r.result.Packets) == 0:
			fmt.Fprintf(w, "%d\t0\t\t\n", r.position)
		default:
			fmt.Fprintf(w, "%d\t%d\t%s\t\n", r.position, len(r.result.Packets), r.result.Packets[0].Message)
		}
	}
	return w.Flush()
}

// ── publish ──────────────────────────────────────────────────────────────────

var publishCmd = &cobra.Command{
	Use:   "publish <namespace> <position> <json-object>",
	Short: "Sign and attach a message at a position (node must hold the stream key)",
	Long: `Publish sends a JSON object to the node, which signs it with the stream
key, splits it into fragments and attaches them to the tangle.

  iam publish weather 42 '{"temp":21,"unit":"C"}'

Use - as the message to read it from stdin.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		positions, err := parsePositions(args[1:2])
		if err != nil {
			return err
		}
		raw := []byte(args[2])
		if args[2] == "-" {
			if raw, err = io.ReadAll(os.Stdin); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
		}
		var message map[string]any
		if err := json.Unmarshal(raw, &message); err != nil || message == nil {
			return errors.New("message must be a JSON object")
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		pub, err := c.Publish(context.Background(), args[0], positions[0], json.RawMessage(raw))
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}

		fmt.Printf("✓ Packet published\n\n")
		fmt.Printf("  Address:   %s\n", pub.Address)
		fmt.Printf("  Root:      %s\n", pub.Root)
		fmt.Printf("  Fragments: %d\n", pub.Fragments)
		return nil
	},
}

// ── address ──────────────────────────────────────────────────────────────────

var addressCmd = &cobra.Command{
	Use:   "address <namespace> <position>",
	Short: "Print the tangle address of a position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		positions, err := parsePositions(args[1:])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		addr, err := c.Address(context.Background(), args[0], positions[0])
		if err != nil {
			return fmt.Errorf("address: %w", err)
		}
		fmt.Println(addr)
		return nil
	},
}

// ── key ──────────────────────────────────────────────────────────────────────

var keyCmd = &cobra.Command{
	Use:   "key <path>",
	Short: "Create a stream key (if missing) and print its stream id",
	Long: `Key loads the Ed25519 stream key at path, generating it first when the
file does not exist, and prints the stream id readers configure as
stream.id to follow the stream.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := identity.LoadOrCreateKey(args[0])
		if err != nil {
			return err
		}
		fmt.Println(identity.StreamID(key.Public().(ed25519.PublicKey)))
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("iam %s\n", version)
	},
}
