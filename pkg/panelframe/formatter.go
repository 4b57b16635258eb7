// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panelframe

import (
	"fmt"
	"strings"
)

// NameFunc resolves a request id to a display name. It returns "" for ids it
// does not know.
type NameFunc func(requestID uint8) string

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame, name NameFunc) string {
	timestamp := f.Timestamp.Format("15:04:05.000")

	label := "UNKNOWN"
	if name != nil {
		if n := name(f.RequestID); n != "" {
			label = n
		}
	}

	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d chk=0x%02X\n", timestamp, label, f.RequestID, f.Length, f.Checksum)
	if len(f.Payload) == 0 {
		return result + "  (no payload)\n"
	}
	return result + formatPayload(f.Payload)
}

// FormatHex renders bytes as space separated upper-case hex pairs
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

func formatPayload(payload []byte) string {
	var sb strings.Builder
	sb.WriteString("  Payload: ")
	for i, b := range payload {
		if i > 0 && i%16 == 0 {
			sb.WriteString("\n           ")
		}
		fmt.Fprintf(&sb, "%02X ", b)
	}
	sb.WriteString("\n")
	return sb.String()
}
