package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jpfielding/exrht.go/pkg/compress/jpeg2k"
	"github.com/jpfielding/exrht.go/pkg/htj2k"
	"github.com/spf13/cobra"
)

// chunkReport summarizes one stored chunk
type chunkReport struct {
	Bytes       int    `json:"bytes"`
	HeaderBytes int    `json:"header_bytes"`
	ChannelMap  []int  `json:"channel_map"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Components  int    `json:"components,omitempty"`
	Precision   int    `json:"precision,omitempty"`
	Levels      int    `json:"levels,omitempty"`
	CodeBlock   string `json:"code_block,omitempty"`
	MCT         bool   `json:"mct"`
	HT          bool   `json:"ht"`
	NLT         string `json:"nlt,omitempty"`

	header htj2k.ChunkHeader
}

// NewHeaderCmd prints the header and codestream summary of a stored chunk
func NewHeaderCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "header [file]",
		Short: "Inspect a stored HT chunk",
		Long:  "Parses the chunk header and codestream main header of a chunk written by roundtrip --dump-chunk.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			if path == "" && len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("file path is required. Use --file flag or provide as argument")
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			rep, err := inspectChunk(data)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			return writeReport(cmd.OutOrStdout(), rep, format)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("file", "f", "", "chunk file path")
	pf.String("format", "text", "output format (text|json)")
	return cmd
}

func inspectChunk(data []byte) (*chunkReport, error) {
	rep := &chunkReport{Bytes: len(data)}
	if err := rep.header.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	rep.HeaderBytes = rep.header.Size
	rep.ChannelMap = make([]int, len(rep.header.ChannelMap))
	for i, e := range rep.header.ChannelMap {
		rep.ChannelMap[i] = e.FileIndex
	}
	if rep.HeaderBytes >= len(data) {
		return rep, nil
	}

	info, err := jpeg2k.ParseCodestreamHeader(data[rep.HeaderBytes:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", htj2k.ErrFormat, err)
	}
	rep.Width, rep.Height = info.SIZ.Width(), info.SIZ.Height()
	rep.Components = len(info.SIZ.Components)
	if rep.Components > 0 {
		rep.Precision = info.SIZ.Components[0].Precision
	}
	rep.Levels = int(info.COD.DecompLevels)
	rep.CodeBlock = fmt.Sprintf("%dx%d", info.COD.CodeBlockWidth(), info.COD.CodeBlockHeight())
	rep.MCT = info.COD.MCT != 0
	rep.HT = info.COD.HighThroughput()
	if info.NLT != nil {
		rep.NLT = info.NLT.Type.String()
	}
	return rep, nil
}

func writeReport(w io.Writer, rep *chunkReport, format string) error {
	switch format {
	case "json":
		return json.NewEncoder(w).Encode(rep)
	case "text":
		fmt.Fprintln(w, rep.header)
		if rep.Width == 0 {
			return nil
		}
		fmt.Fprintf(w, "codestream: %dx%d, %d components, %d bits, %d levels, blocks %s, mct=%t, ht=%t, nlt=%s\n",
			rep.Width, rep.Height, rep.Components, rep.Precision, rep.Levels, rep.CodeBlock, rep.MCT, rep.HT, rep.NLT)
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
