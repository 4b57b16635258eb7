// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package panelframe

// Checksum XOR-folds data. Callers checking a frame must zero the checksum
// position first, see FrameChecksum.
func Checksum(data []byte) uint8 {
	var sum uint8
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// FrameChecksum computes the checksum of a complete frame with its checksum
// byte (second to last) treated as zero. Since x^0 == x this is the fold of
// every byte except the checksum position.
func FrameChecksum(frame []byte) uint8 {
	if len(frame) < 2 {
		return Checksum(frame)
	}
	pos := len(frame) - 2
	return Checksum(frame[:pos]) ^ Checksum(frame[pos+1:])
}
