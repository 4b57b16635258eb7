// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/panelbridge/pkg/panelframe"
	"github.com/Thermoquad/panelbridge/pkg/payload"
)

var (
	encodeValue    string
	encodeEncoding string
	encodeSend     bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode ID [HEX]",
	Short: "Print an encoded frame",
	Long: `Build a frame for request id ID and print it as hex.

The payload is either given as hex bytes (spaces allowed) or, with --value,
encoded from a number using --encoding. With --send the frame is also written
to the panel link.

Examples:
  panelbridge encode 1 "DE AD"
  panelbridge encode 3 --value 3500 --encoding i32
  panelbridge encode 1 --send --port /dev/ttyUSB0`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().StringVar(&encodeValue, "value", "", "Numeric value to encode as payload")
	encodeCmd.Flags().StringVar(&encodeEncoding, "encoding", "f32", "Encoding for --value (f32, f64, i32, cbor)")
	encodeCmd.Flags().BoolVar(&encodeSend, "send", false, "Write the frame to the panel link")
}

func runEncode(cmd *cobra.Command, args []string) error {
	var hexArg string
	if len(args) > 1 {
		hexArg = args[1]
	}

	frame, err := buildFrame(args[0], hexArg, encodeValue, encodeEncoding)
	if err != nil {
		return err
	}

	printFrame(cmd.OutOrStdout(), frame)

	if !encodeSend {
		return nil
	}
	tr, connInfo, err := OpenTransport()
	if err != nil {
		return err
	}
	defer closeTransport(tr)

	if err := tr.Write(frame); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent to %s\n", connInfo)
	return nil
}

// buildFrame parses the encode arguments into a frame
func buildFrame(idArg, hexArg, value, encoding string) ([]byte, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(idArg), 0, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid request id %q: %w", idArg, err)
	}

	var p []byte
	switch {
	case value != "" && hexArg != "":
		return nil, fmt.Errorf("give either HEX or --value, not both")
	case value != "":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --value %q: %w", value, err)
		}
		enc, err := payload.ParseEncoding(encoding)
		if err != nil {
			return nil, err
		}
		if p, err = enc.Encode(v); err != nil {
			return nil, err
		}
	case hexArg != "":
		p, err = hex.DecodeString(strings.ReplaceAll(hexArg, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("invalid payload hex: %w", err)
		}
	}

	return panelframe.Encode(int(id), p)
}

func printFrame(w io.Writer, frame []byte) {
	fmt.Fprintln(w, panelframe.FormatHex(frame))
}
