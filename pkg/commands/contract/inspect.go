package contract

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/chainlink-contract-harness/artifact"
	"github.com/smartcontractkit/chainlink-contract-harness/internal/text"
)

const (
	formatText = "text"
	formatJSON = "json"
)

var (
	inspectLong = text.LongDesc(`
		Loads a compiled contract artifact and prints its version, the files it was read from and the
		methods of its interface. The binary is checked against the interface unless
		--skip-consistency-check is set.
	`)

	inspectExample = text.Examples(`
		# Inspect a flat artifact (<dir>/<name>.bin and <dir>/<name>-abi.json)
		harness contract inspect --dir out/debug --name storage

		# Inspect a forge build output as JSON
		harness contract inspect --dir out --name Storage.sol:Storage --layout foundry --format json
	`)
)

// report is the description of an artifact printed by the inspect command.
type report struct {
	Name         string         `json:"name"`
	Version      string         `json:"version"`
	BinPath      string         `json:"bin_path"`
	ABIPath      string         `json:"abi_path"`
	BytecodeSize int            `json:"bytecode_size"`
	Constructor  string         `json:"constructor,omitempty"`
	Methods      []methodReport `json:"methods"`
}

type methodReport struct {
	Signature       string   `json:"signature"`
	Selector        string   `json:"selector"`
	StateMutability string   `json:"state_mutability"`
	Outputs         []string `json:"outputs,omitempty"`
}

func newReport(desc *artifact.Descriptor) report {
	r := report{
		Name:         desc.Name,
		Version:      desc.Version.String(),
		BinPath:      desc.BinPath,
		ABIPath:      desc.ABIPath,
		BytecodeSize: len(desc.Bytecode),
		Methods:      make([]methodReport, 0, len(desc.ABI.Methods)),
	}
	if len(desc.ABI.Constructor.Inputs) > 0 {
		r.Constructor = "constructor(" + strings.Join(argumentTypes(desc.ABI.Constructor.Inputs), ",") + ")"
	}

	for _, m := range desc.Methods() {
		r.Methods = append(r.Methods, methodReport{
			Signature:       m.Sig,
			Selector:        hexutil.Encode(m.ID),
			StateMutability: m.StateMutability,
			Outputs:         argumentTypes(m.Outputs),
		})
	}

	return r
}

func argumentTypes(args abi.Arguments) []string {
	if len(args) == 0 {
		return nil
	}

	types := make([]string, 0, len(args))
	for _, a := range args {
		types = append(types, a.Type.String())
	}

	return types
}

// newInspectCmd creates the "inspect" subcommand.
func newInspectCmd(cfg Config) *cobra.Command {
	var (
		src    artifact.Source
		layout string
		format string
	)

	cmd := &cobra.Command{
		Use:     "inspect",
		Short:   "Print the description of a contract artifact.",
		Long:    inspectLong,
		Example: inspectExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			src.Layout = artifact.Layout(layout)

			return runInspect(cmd, cfg, src, format)
		},
	}

	cmd.Flags().StringVarP(&src.Dir, "dir", "d", "", "Build output directory (required)")
	cmd.Flags().StringVarP(&src.Name, "name", "n", "", "Artifact name (required)")
	cmd.Flags().StringVarP(&layout, "layout", "l", string(artifact.LayoutFlat), "Output directory layout: flat or foundry")
	cmd.Flags().StringVar(&src.Version, "version", "", "Version recorded for the artifact")
	cmd.Flags().BoolVar(&src.SkipConsistencyCheck, "skip-consistency-check", false, "Do not check the binary against the interface")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text or json")
	_ = cmd.MarkFlagRequired("dir")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// runInspect executes the inspect command logic.
func runInspect(cmd *cobra.Command, cfg Config, src artifact.Source, format string) error {
	if format != formatText && format != formatJSON {
		return fmt.Errorf("unsupported format %q, expected %q or %q", format, formatText, formatJSON)
	}

	desc, err := cfg.deps().ArtifactLoader(src)
	if err != nil {
		return fmt.Errorf("failed to load artifact: %w", err)
	}
	cfg.Logger.Debugw("Artifact loaded", "artifact", desc.String())

	r := newReport(desc)
	if format == formatJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(r)
	}

	return writeText(cmd.OutOrStdout(), r)
}

func writeText(w io.Writer, r report) error {
	constructor := r.Constructor
	if constructor == "" {
		constructor = "-"
	}

	var b strings.Builder
	for _, kv := range [][2]string{
		{"Name:", r.Name},
		{"Version:", r.Version},
		{"Binary:", r.BinPath},
		{"Interface:", r.ABIPath},
		{"Bytecode:", fmt.Sprintf("%d bytes", r.BytecodeSize)},
		{"Constructor:", constructor},
	} {
		fmt.Fprintf(&b, "%-12s %s\n", kv[0], kv[1])
	}

	rows := make([][]string, 0, len(r.Methods))
	for _, m := range r.Methods {
		returns := "-"
		if len(m.Outputs) > 0 {
			returns = strings.Join(m.Outputs, ", ")
		}
		rows = append(rows, []string{m.Selector, m.Signature, m.StateMutability, returns})
	}
	b.WriteString("Methods:\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	text.Table(w, []string{"SELECTOR", "SIGNATURE", "MUTABILITY", "RETURNS"}, rows)

	return nil
}
